package translate

import "context"

// Translator converts a text segment between languages. Implementations must
// never fail a caller over a bad segment: remote errors degrade to an empty
// string, and callers treat "" as "translation unavailable for this segment".
type Translator interface {
	Translate(ctx context.Context, text, srcLang, tgtLang string) string
}

// Func adapts a plain function to the Translator interface.
type Func func(ctx context.Context, text, srcLang, tgtLang string) string

func (f Func) Translate(ctx context.Context, text, srcLang, tgtLang string) string {
	return f(ctx, text, srcLang, tgtLang)
}
