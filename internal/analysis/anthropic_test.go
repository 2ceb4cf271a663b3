package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func messageJSON(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-test",
		"content":     []map[string]string{{"type": "text", "text": text}},
		"stop_reason": "end_turn",
		"usage":       map[string]int{"input_tokens": 1, "output_tokens": 1},
	})
	return string(b)
}

func TestAnthropic_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "k-123", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "claude-test", req.Model)
		require.Equal(t, 321, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		require.Equal(t, "user", req.Messages[0].Role)
		require.Equal(t, "hello", req.Messages[0].Content[0].Text)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageJSON(`{"summary":"ok"}`)))
	}))
	defer srv.Close()

	c := NewAnthropic(AnthropicOptions{Endpoint: srv.URL + "/", Model: "claude-test", APIKey: "k-123"})
	out, err := c.Complete(context.Background(), "hello", 321)
	require.NoError(t, err)
	require.Equal(t, `{"summary":"ok"}`, out)
}

func TestAnthropic_ErrorStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewAnthropic(AnthropicOptions{Endpoint: srv.URL, Model: "m", APIKey: "k", Retry: 2})
	_, err := c.Complete(context.Background(), "x", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "anthropic error 401")
	require.Contains(t, err.Error(), "bad key")
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnthropic_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
			return
		}
		_, _ = w.Write([]byte(messageJSON("fine")))
	}))
	defer srv.Close()

	c := NewAnthropic(AnthropicOptions{Endpoint: srv.URL, Model: "m", APIKey: "k", Retry: 1})
	out, err := c.Complete(context.Background(), "x", 10)
	require.NoError(t, err)
	require.Equal(t, "fine", out)
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestAnthropic_Misconfigured(t *testing.T) {
	_, err := NewAnthropic(AnthropicOptions{Endpoint: "http://x", Model: "m"}).Complete(context.Background(), "x", 1)
	require.Error(t, err)
}

func TestAnthropic_ServiceEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageJSON(`Here you go: {"summary":"S","impact_level":"Medium","security_updates":["CVE-2026-1"]}`)))
	}))
	defer srv.Close()

	s := New(NewAnthropic(AnthropicOptions{Endpoint: srv.URL, Model: "m", APIKey: "k"}), Options{})
	a := s.Analyze(context.Background(), Input{Title: "t", Content: "x"})
	require.Equal(t, "S", a.Summary)
	require.Equal(t, "MEDIUM", a.ImpactLevel)
	require.Equal(t, []string{"Security"}, a.Categories)
}
