package stt

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// extensions maps declared audio MIME types to the file extension the
// transcription API expects.
var extensions = map[string]string{
	"audio/webm":  "webm",
	"video/webm":  "webm",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/wave":  "wav",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/m4a":   "m4a",
	"audio/ogg":   "ogg",
	"audio/flac":  "flac",
	"audio/aac":   "aac",
}

const fallbackExtension = "webm"

// fileExtension resolves a MIME type (possibly carrying parameters such as
// ";codecs=opus") to an extension. Unknown types fall back to webm so a
// novel recorder MIME never fails the request outright.
func fileExtension(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	return fallbackExtension
}

// Client transcribes recorded audio segments with Whisper.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(api *openai.Client, model string, timeout time.Duration) *Client {
	return &Client{api: api, model: model, timeout: timeout}
}

// Transcribe sends one audio segment and returns the raw transcript. The
// language hint is optional and passed through as-is.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType, langHint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: "segment." + fileExtension(mimeType),
		Reader:   bytes.NewReader(audio),
		Language: langHint,
	})
	if err != nil {
		return "", errors.Wrap(err, "transcription failed")
	}
	return strings.TrimSpace(resp.Text), nil
}
