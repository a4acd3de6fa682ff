package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const defaultReverieURL = "https://revapi.reverieinc.com/"

// ReverieClient calls the Reverie localization REST API. A zero value is not
// usable; construct with NewReverieClient.
type ReverieClient struct {
	apiKey     string
	appID      string
	baseURL    string
	httpClient *http.Client
}

// NewReverieClient creates a translator backed by the Reverie API.
func NewReverieClient(apiKey, appID string) *ReverieClient {
	return &ReverieClient{
		apiKey:  apiKey,
		appID:   appID,
		baseURL: defaultReverieURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBaseURL points the client at a different endpoint. Used by tests and by
// deployments that proxy the translation API.
func (c *ReverieClient) SetBaseURL(url string) {
	c.baseURL = url
}

type reverieRequest struct {
	Data []string `json:"data"`
}

type reverieResponse struct {
	ResponseList []struct {
		InString  string `json:"inString"`
		OutString string `json:"outString"`
	} `json:"responseList"`
}

// Translate converts text from srcLang to tgtLang. Empty input returns ""
// without a remote call. Any transport or decode failure is logged and also
// yields "": per-segment translation loss is a degradation, not an error.
func (c *ReverieClient) Translate(ctx context.Context, text, srcLang, tgtLang string) string {
	if text == "" {
		return ""
	}

	out, err := c.translate(ctx, text, srcLang, tgtLang)
	if err != nil {
		log.Printf("translation unavailable for segment (%s -> %s): %v", srcLang, tgtLang, err)
		return ""
	}
	return out
}

func (c *ReverieClient) translate(ctx context.Context, text, srcLang, tgtLang string) (string, error) {
	body, err := json.Marshal(reverieRequest{Data: []string{text}})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("REV-API-KEY", c.apiKey)
	req.Header.Set("REV-APP-ID", c.appID)
	req.Header.Set("REV-APPNAME", "localization")
	req.Header.Set("src_lang", srcLang)
	req.Header.Set("tgt_lang", tgtLang)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation API returned %s", resp.Status)
	}

	var decoded reverieResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode translation response: %w", err)
	}
	if len(decoded.ResponseList) == 0 || decoded.ResponseList[0].OutString == "" {
		return "", fmt.Errorf("translation response carried no output")
	}

	return decoded.ResponseList[0].OutString, nil
}
