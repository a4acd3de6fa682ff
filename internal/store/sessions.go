package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/ruralhealth/clinic-assistant/internal/voice"
)

const sessionTTL = time.Hour

// SessionCache keeps live voice-session snapshots in a redis hash per
// session, so dashboards and other instances can read capture progress
// without holding the websocket.
type SessionCache struct {
	client *redis.Client
	prefix string
}

// NewSessionCache creates a cache using the given redis client. prefix
// namespaces the keys, e.g. "voice:session:".
func NewSessionCache(client *redis.Client, prefix string) *SessionCache {
	if prefix == "" {
		prefix = "voice:session:"
	}
	return &SessionCache{client: client, prefix: prefix}
}

func (c *SessionCache) key(id string) string {
	return c.prefix + id
}

// Save writes the snapshot hash and refreshes its TTL.
func (c *SessionCache) Save(ctx context.Context, s voice.Session) error {
	key := c.key(s.ID)
	fields := map[string]any{
		"is_recording":            strconv.FormatBool(s.IsRecording),
		"elapsed_seconds":         s.ElapsedSeconds,
		"interim_transcript":      s.InterimTranscript,
		"interim_translation":     s.InterimTranslation,
		"final_transcript":        s.FinalTranscript,
		"accumulated_translation": s.AccumulatedTranslation,
		"source_language":         s.SourceLanguage,
		"target_language":         s.TargetLanguage,
	}
	if err := c.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return c.client.Expire(ctx, key, sessionTTL).Err()
}

// Load reads a snapshot back. Returns ErrNotFound for unknown sessions.
func (c *SessionCache) Load(ctx context.Context, id string) (voice.Session, error) {
	vals, err := c.client.HGetAll(ctx, c.key(id)).Result()
	if err != nil {
		return voice.Session{}, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	if len(vals) == 0 {
		return voice.Session{}, ErrNotFound
	}

	elapsed, _ := strconv.Atoi(vals["elapsed_seconds"])
	return voice.Session{
		ID:                     id,
		IsRecording:            vals["is_recording"] == "true",
		ElapsedSeconds:         elapsed,
		InterimTranscript:      vals["interim_transcript"],
		InterimTranslation:     vals["interim_translation"],
		FinalTranscript:        vals["final_transcript"],
		AccumulatedTranslation: vals["accumulated_translation"],
		SourceLanguage:         vals["source_language"],
		TargetLanguage:         vals["target_language"],
	}, nil
}

// Delete removes a session snapshot once the session is over.
func (c *SessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
