package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Usage carries the token counts one chat call reported.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u *Usage) add(other openai.Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// maxTranslateRetries bounds the empty-result retry loop. Exactly one retry
// with a strengthened instruction; an empty second answer is accepted as-is.
const maxTranslateRetries = 1

const refineInstructions = "You clean up speech-recognition transcripts. " +
	"Fix grammar, punctuation and obvious transcription errors only. " +
	"Keep the transcript in its original language. Do not add, remove or reorder sentences. " +
	"Return only the corrected transcript."

const retryInstruction = "Your previous answer was empty. You must return a non-empty translation of the message."

// Client issues chat completions for transcript refinement and translation.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(api *openai.Client, model string, timeout time.Duration) *Client {
	return &Client{api: api, model: model, timeout: timeout}
}

// NormalizeLanguage expands ambiguous Chinese labels into explicit
// instructions; a bare "Chinese" means different things to a translation
// model depending on script and register.
func NormalizeLanguage(label string) string {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "cantonese"):
		return "spoken Cantonese, written in traditional Chinese characters (not Mandarin)"
	case strings.Contains(lower, "mandarin"):
		return "Mandarin Chinese, written in simplified characters as used in Mainland China"
	}
	return label
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, openai.Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", openai.Usage{}, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", resp.Usage, nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), resp.Usage, nil
}

// Refine corrects grammar, punctuation and ASR mistakes in a transcript
// without changing its content or language.
func (c *Client) Refine(ctx context.Context, transcript string) (string, Usage, error) {
	var usage Usage
	text, u, err := c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: refineInstructions},
		{Role: openai.ChatMessageRoleUser, Content: transcript},
	})
	usage.add(u)
	if err != nil {
		return "", usage, err
	}
	return text, usage, nil
}

// Translate renders the text into the target language. The prior transcript,
// when present, grounds pronouns, tense and names. An empty first answer is
// retried once with a strengthened instruction; an empty answer after that
// is returned as-is.
func (c *Client) Translate(ctx context.Context, text, targetLang, prior string) (string, Usage, error) {
	system := fmt.Sprintf("Translate the user's message into %s. "+
		"Output only the translated text, with no commentary. "+
		"If the message is already in the target language, return it unchanged.",
		NormalizeLanguage(targetLang))
	if prior != "" {
		system += fmt.Sprintf(" Use this previous transcript only as context for pronouns, tense and names: %q.", prior)
	}

	var usage Usage
	for attempt := 0; ; attempt++ {
		instructions := system
		if attempt > 0 {
			instructions += " " + retryInstruction
		}

		translated, u, err := c.complete(ctx, []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: text},
		})
		usage.add(u)
		if err != nil {
			return "", usage, err
		}
		if translated != "" || attempt >= maxTranslateRetries {
			return translated, usage, nil
		}
	}
}
