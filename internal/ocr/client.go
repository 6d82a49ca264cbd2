package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "ros2cal/internal/log"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Usage holds the token accounting for one model call.
type Usage struct {
	InputTokens        int `json:"input_tokens"`
	OutputTokens       int `json:"output_tokens"`
	CachedInputTokens  int `json:"cached_input_tokens"`
	CachedOutputTokens int `json:"cached_output_tokens"`
	TotalTokens        int `json:"total_tokens"`
}

// EffectiveTotal returns the reported total, or input+output when the
// API omitted it.
func (u Usage) EffectiveTotal() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// Result is the outcome of the full OCR+parse round trip: the raw roster
// JSON payload plus the usage of both calls.
type Result struct {
	Payload    []byte
	OCRUsage   Usage
	ParseUsage Usage
}

// Client drives the two-call pipeline against the OpenAI Responses API:
// one vision call transcribing the roster image and one text call
// turning the transcription into structured roster JSON.
type Client struct {
	apiKey     string
	ocrModel   string
	parseModel string
	baseURL    string
	httpc      *http.Client
}

// NewClient builds a Client. Model names come from configuration; the
// API key from the environment.
func NewClient(apiKey, ocrModel, parseModel string) *Client {
	return &Client{
		apiKey:     apiKey,
		ocrModel:   ocrModel,
		parseModel: parseModel,
		baseURL:    defaultBaseURL,
		httpc:      &http.Client{Timeout: 120 * time.Second},
	}
}

// ParseImage runs OCR on the image bytes and parses the transcription
// into a raw roster JSON payload. The payload is returned as-is; schema
// validation is the normalizer's job.
func (c *Client) ParseImage(ctx context.Context, image []byte) (Result, error) {
	if c.apiKey == "" {
		return Result{}, errors.New("OPENAI_API_KEY is empty")
	}

	mime := http.DetectContentType(image)
	if !supportedImageMIME(mime) {
		return Result{}, fmt.Errorf("unsupported image MIME %s (need image/jpeg|png|webp)", mime)
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	text, ocrUsage, err := c.ocrImage(ctx, dataURL)
	if err != nil {
		return Result{}, fmt.Errorf("ocr call: %w", err)
	}
	appLog.Info("roster transcribed", "chars", len(text), "tokens", ocrUsage.EffectiveTotal())

	payload, parseUsage, err := c.parseRosterText(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("parse call: %w", err)
	}
	appLog.Info("roster parsed", "bytes", len(payload), "tokens", parseUsage.EffectiveTotal())

	return Result{Payload: payload, OCRUsage: ocrUsage, ParseUsage: parseUsage}, nil
}

func (c *Client) ocrImage(ctx context.Context, dataURL string) (string, Usage, error) {
	body := map[string]any{
		"model":       c.ocrModel,
		"temperature": 0,
		"top_p":       1,
		"input": []any{
			map[string]any{"role": "system", "content": systemPromptOCR},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "input_text", "text": "Transcribe the roster in this image exactly as text."},
					map[string]any{"type": "input_image", "image_url": dataURL, "detail": "high"},
				},
			},
		},
	}
	out, usage, err := c.call(ctx, body)
	return out, usage, err
}

func (c *Client) parseRosterText(ctx context.Context, rosterText string) ([]byte, Usage, error) {
	body := map[string]any{
		"model":       c.parseModel,
		"temperature": 0,
		"top_p":       1,
		"input": []any{
			map[string]any{"role": "system", "content": systemPromptParse},
			map[string]any{"role": "user", "content": rosterText},
		},
	}
	out, usage, err := c.call(ctx, body)
	if err != nil {
		return nil, usage, err
	}

	out = stripCodeFences(out)
	if !json.Valid([]byte(out)) {
		return nil, usage, errors.New("model returned invalid JSON")
	}
	return []byte(out), usage, nil
}

// responsesReply covers the slice of the Responses API shape we use.
type responsesReply struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens        int `json:"input_tokens"`
		OutputTokens       int `json:"output_tokens"`
		TotalTokens        int `json:"total_tokens"`
		InputTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"input_tokens_details"`
		OutputTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"output_tokens_details"`
	} `json:"usage"`
}

func (c *Client) call(ctx context.Context, body map[string]any) (string, Usage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", Usage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", Usage{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", Usage{}, fmt.Errorf("responses API %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var reply responsesReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", Usage{}, fmt.Errorf("responses API: bad reply: %w", err)
	}

	usage := Usage{
		InputTokens:        reply.Usage.InputTokens,
		OutputTokens:       reply.Usage.OutputTokens,
		CachedInputTokens:  reply.Usage.InputTokensDetails.CachedTokens,
		CachedOutputTokens: reply.Usage.OutputTokensDetails.CachedTokens,
		TotalTokens:        reply.Usage.TotalTokens,
	}

	var sb strings.Builder
	for _, item := range reply.Output {
		for _, content := range item.Content {
			if content.Type == "output_text" {
				sb.WriteString(content.Text)
			}
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", usage, errors.New("responses API: empty output")
	}
	return out, usage, nil
}

func supportedImageMIME(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
