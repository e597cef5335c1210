package ocr

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

const chatResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "gpt-4o-mini",
	"choices": [
		{
			"index": 0,
			"message": {"role": "assistant", "content": "Recognized page text"},
			"finish_reason": "stop"
		}
	]
}`

func TestVisionProcessImage(t *testing.T) {
	var gotPath string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse))
	}))
	defer srv.Close()

	e := NewVisionEngine(VisionConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RetryDelay: time.Millisecond,
	})

	image := []byte{0x89, 'P', 'N', 'G'}
	pr, err := e.ProcessImage(t.Context(), image, 1)
	if err != nil {
		t.Fatalf("ProcessImage: %v", err)
	}

	if !pr.Success {
		t.Fatal("expected success")
	}
	if pr.Text != "Recognized page text" {
		t.Errorf("text = %q", pr.Text)
	}
	if pr.Engine != VisionName {
		t.Errorf("engine = %q", pr.Engine)
	}
	if pr.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", pr.Confidence)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", gotReq.Messages)
	}
	parts := gotReq.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("content parts = %+v", parts)
	}
	if parts[0].Type != "text" || !strings.Contains(parts[0].Text, "Transcribe") {
		t.Errorf("text part = %+v", parts[0])
	}
	wantURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
	if parts[1].Type != "image_url" || parts[1].ImageURL.URL != wantURL {
		t.Errorf("image part = %+v", parts[1])
	}
}

func TestVisionProcessImageRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"message": "upstream overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse))
	}))
	defer srv.Close()

	e := NewVisionEngine(VisionConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})

	pr, err := e.ProcessImage(t.Context(), []byte("img"), 1)
	if err != nil {
		t.Fatalf("ProcessImage after retries: %v", err)
	}
	if !pr.Success || pr.Text != "Recognized page text" {
		t.Errorf("result = %+v", pr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestVisionProcessImageEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "chatcmpl-2", "object": "chat.completion", "choices": []}`))
	}))
	defer srv.Close()

	e := NewVisionEngine(VisionConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})

	pr, err := e.ProcessImage(t.Context(), []byte("img"), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if pr.Success {
		t.Error("expected failed page result")
	}
	if !strings.Contains(pr.ErrorMessage, "empty completion response") {
		t.Errorf("error message = %q", pr.ErrorMessage)
	}
}

func TestNewVisionEngineDefaults(t *testing.T) {
	e := NewVisionEngine(VisionConfig{APIKey: "k"})
	if e.model != visionDefaultModel {
		t.Errorf("model = %q", e.model)
	}
	if e.prompt != visionDefaultPrompt {
		t.Errorf("prompt = %q", e.prompt)
	}
	if e.maxRetries != visionDefaultRetries {
		t.Errorf("maxRetries = %d", e.maxRetries)
	}
	if e.retryDelay != visionDefaultDelay {
		t.Errorf("retryDelay = %v", e.retryDelay)
	}
}
