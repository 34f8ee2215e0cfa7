package stt

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"audio/webm":             "webm",
		"audio/webm;codecs=opus": "webm",
		"AUDIO/WAV":              "wav",
		"audio/mpeg":             "mp3",
		"audio/ogg":              "ogg",
		"application/x-mystery":  "webm", // unknown types fall back
		"":                       "webm",
		" audio/mp4 ":            "m4a",
	}
	for mime, want := range cases {
		if got := fileExtension(mime); got != want {
			t.Errorf("fileExtension(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestTranscribeSendsFilenameAndLanguageHint(t *testing.T) {
	var gotFilename, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		gotLanguage = r.FormValue("language")
		if files := r.MultipartForm.File["file"]; len(files) == 1 {
			gotFilename = files[0].Filename
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text": " hello everyone "}`)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := NewClient(openai.NewClientWithConfig(cfg), "whisper-1", 5*time.Second)

	// A MIME type the server has never heard of must still transcribe.
	text, err := client.Transcribe(context.Background(), []byte{1, 2, 3}, "audio/x-novel-codec", "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello everyone" {
		t.Fatalf("text = %q", text)
	}
	if gotFilename != "segment.webm" {
		t.Fatalf("filename = %q, want the fallback extension", gotFilename)
	}
	if gotLanguage != "en" {
		t.Fatalf("language hint = %q", gotLanguage)
	}
}

func TestTranscribeSurfacesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "audio too long"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := NewClient(openai.NewClientWithConfig(cfg), "whisper-1", 5*time.Second)

	if _, err := client.Transcribe(context.Background(), []byte{1}, "audio/webm", ""); err == nil {
		t.Fatal("expected an error for a non-2xx upstream response")
	}
}
