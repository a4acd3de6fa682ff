package assess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Provider presets for the OpenAI-compatible chat-completions endpoints the
// assistant can talk to. They all share one wire format, so provider choice
// is configuration, not code.
var providerPresets = map[string]struct {
	baseURL string
	model   string
}{
	"openai":   {"https://api.openai.com/v1", "gpt-4o"},
	"deepseek": {"https://openrouter.ai/api/v1", "deepseek/deepseek-r1:free"},
	"gemini":   {"https://generativelanguage.googleapis.com/v1beta/openai", "gemini-2.0-flash"},
}

// ChatClient calls a chat-completions endpoint with the fixed medical-
// assistant priming exchange and parses the structured JSON reply.
type ChatClient struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewChatClient creates an assessment client for the named provider
// ("openai", "deepseek", "gemini"). Unknown providers fall back to openai.
func NewChatClient(provider, apiKey string) *ChatClient {
	preset, ok := providerPresets[provider]
	if !ok {
		log.Printf("unknown assessment provider %q, using openai", provider)
		preset = providerPresets["openai"]
	}
	return &ChatClient{
		baseURL: preset.baseURL,
		model:   preset.model,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// SetBaseURL overrides the endpoint, for tests and proxied deployments.
func (c *ChatClient) SetBaseURL(url string) {
	c.baseURL = url
}

// Model reports the pinned model identifier.
func (c *ChatClient) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// rawAssessment is the JSON contract the priming prompt demands of the model.
type rawAssessment struct {
	PossibleCauses      []string `json:"Possible_Causes"`
	KeySymptomsFindings []string `json:"Key_Symptoms_Findings"`
	SuggestedTests      []string `json:"Suggested_Tests"`
	SuggestedTreatment  []string `json:"Suggested_Treatment"`
}

// Analyze sends the symptom narrative through the fixed two-turn priming
// exchange and parses the reply. Exactly one remote call is made; any failure
// (transport, non-JSON content, missing keys) returns ErrAnalysisUnavailable
// so the workflow can install the fallback assessment.
func (c *ChatClient) Analyze(ctx context.Context, narrative string) (*MedicalAssessment, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: systemPrompt},
			{Role: "assistant", Content: assistantAck},
			{Role: "user", Content: narrative},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("assessment request failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("assessment API returned %s", resp.Status)
		return nil, fmt.Errorf("%w: status %s", ErrAnalysisUnavailable, resp.Status)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: no content returned", ErrAnalysisUnavailable)
	}

	return parseAssessment(decoded.Choices[0].Message.Content)
}

// parseAssessment strips surrounding markdown code fences and decodes the
// four-list JSON object. Missing any of the four keys is a parse failure.
func parseAssessment(content string) (*MedicalAssessment, error) {
	cleaned := stripCodeFence(content)

	var raw rawAssessment
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		log.Printf("assessment response was not valid JSON: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	if raw.PossibleCauses == nil || raw.KeySymptomsFindings == nil ||
		raw.SuggestedTests == nil || raw.SuggestedTreatment == nil {
		return nil, fmt.Errorf("%w: response missing required keys", ErrAnalysisUnavailable)
	}

	return &MedicalAssessment{
		PossibleCauses:     raw.PossibleCauses,
		KeyFindings:        raw.KeySymptomsFindings,
		SuggestedTests:     raw.SuggestedTests,
		SuggestedTreatment: raw.SuggestedTreatment,
	}, nil
}

// stripCodeFence removes a surrounding ```json ... ``` (or bare ```) block
// that models often wrap JSON output in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
