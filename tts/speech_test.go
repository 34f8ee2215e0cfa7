package tts_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/polyglot-rooms/tts"
)

func TestSynthesizeEncodesAudioAsBase64(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := tts.NewClient(openai.NewClientWithConfig(cfg), "tts-1", "alloy", 5*time.Second)

	got, err := client.Synthesize(context.Background(), "Hola a todos.")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString(audio) {
		t.Fatalf("base64 = %q", got)
	}
}

func TestSynthesizeSurfacesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "voice unavailable"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := tts.NewClient(openai.NewClientWithConfig(cfg), "tts-1", "alloy", 5*time.Second)

	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for a non-2xx upstream response")
	}
}
