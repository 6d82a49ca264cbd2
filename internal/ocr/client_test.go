package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// pngStub is the PNG magic plus padding, enough for MIME sniffing.
var pngStub = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func replyWith(text string, inputTokens, outputTokens int) []byte {
	body := map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
		"usage": map[string]any{
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
			"input_tokens_details": map[string]any{
				"cached_tokens": 5,
			},
		},
	}
	data, _ := json.Marshal(body)
	return data
}

func TestParseImage_TwoCallFlow(t *testing.T) {
	var calls []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var body struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		calls = append(calls, body.Model)

		switch len(calls) {
		case 1:
			w.Write(replyWith("14DEC OK123 PRG 0600 VIE 0930", 100, 20))
		default:
			w.Write(replyWith(`{"events":[{"kind":"Flight","flight_number":"OK123"}]}`, 200, 40))
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", "ocr-model", "parse-model")
	c.baseURL = srv.URL

	res, err := c.ParseImage(context.Background(), pngStub)
	if err != nil {
		t.Fatalf("ParseImage failed: %v", err)
	}

	if len(calls) != 2 || calls[0] != "ocr-model" || calls[1] != "parse-model" {
		t.Errorf("unexpected call sequence: %v", calls)
	}
	if !json.Valid(res.Payload) {
		t.Errorf("payload is not valid JSON: %s", res.Payload)
	}
	if res.OCRUsage.InputTokens != 100 || res.ParseUsage.OutputTokens != 40 {
		t.Errorf("usage not carried: %+v %+v", res.OCRUsage, res.ParseUsage)
	}
	if res.OCRUsage.CachedInputTokens != 5 {
		t.Errorf("cached tokens not extracted: %+v", res.OCRUsage)
	}
}

func TestParseImage_StripsCodeFences(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write(replyWith("roster text", 1, 1))
			return
		}
		w.Write(replyWith("```json\n{\"events\":[]}\n```", 1, 1))
	}))
	defer srv.Close()

	c := NewClient("test-key", "a", "b")
	c.baseURL = srv.URL

	res, err := c.ParseImage(context.Background(), pngStub)
	if err != nil {
		t.Fatalf("ParseImage failed: %v", err)
	}
	if string(res.Payload) != `{"events":[]}` {
		t.Errorf("fences not stripped: %s", res.Payload)
	}
}

func TestParseImage_RejectsUnsupportedMIME(t *testing.T) {
	c := NewClient("test-key", "a", "b")
	_, err := c.ParseImage(context.Background(), []byte("%PDF-1.4 not an image"))
	if err == nil || !strings.Contains(err.Error(), "unsupported image MIME") {
		t.Fatalf("expected MIME rejection, got %v", err)
	}
}

func TestParseImage_MissingAPIKey(t *testing.T) {
	c := NewClient("", "a", "b")
	_, err := c.ParseImage(context.Background(), pngStub)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestParseImage_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", "a", "b")
	c.baseURL = srv.URL

	_, err := c.ParseImage(context.Background(), pngStub)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestParseImage_InvalidModelJSON(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write(replyWith("roster text", 1, 1))
			return
		}
		w.Write(replyWith("sorry, I could not read the roster", 1, 1))
	}))
	defer srv.Close()

	c := NewClient("test-key", "a", "b")
	c.baseURL = srv.URL

	_, err := c.ParseImage(context.Background(), pngStub)
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
}

func TestUsage_EffectiveTotal(t *testing.T) {
	if got := (Usage{InputTokens: 10, OutputTokens: 5}).EffectiveTotal(); got != 15 {
		t.Errorf("expected sum fallback 15, got %d", got)
	}
	if got := (Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 99}).EffectiveTotal(); got != 99 {
		t.Errorf("expected reported total 99, got %d", got)
	}
}
