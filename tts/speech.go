package tts

import (
	"context"
	"encoding/base64"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Client synthesizes speech from translated text.
type Client struct {
	api     *openai.Client
	model   string
	voice   string
	timeout time.Duration
}

func NewClient(api *openai.Client, model, voice string, timeout time.Duration) *Client {
	return &Client{api: api, model: model, voice: voice, timeout: timeout}
}

// Synthesize returns the spoken rendition of the text as base64-encoded
// audio.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(c.model),
		Input: text,
		Voice: openai.SpeechVoice(c.voice),
	})
	if err != nil {
		return "", errors.Wrap(err, "speech synthesis failed")
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return "", errors.Wrap(err, "failed to read synthesized audio")
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}
