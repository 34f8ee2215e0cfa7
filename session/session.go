package session

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/polyglot-rooms/broadcast"
	"github.com/mrsingh-rishi/polyglot-rooms/llm"
	"github.com/mrsingh-rishi/polyglot-rooms/room"
	"github.com/mrsingh-rishi/polyglot-rooms/usage"
)

// Output modes for a translation request.
const (
	ModeText  = "text"
	ModeAudio = "audio"
	ModeBoth  = "both"
)

// DefaultRoom is used when the caller does not name one.
const DefaultRoom = "default"

var (
	ErrPasscodeRequired = errors.New("passcode is required")
	ErrPasscodeMismatch = errors.New("passcode does not match this room")
	ErrEmptyAudio       = errors.New("audio payload is empty")
)

// Transcriber turns one audio segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, langHint string) (string, error)
}

// Translator refines a transcript and renders it into target languages.
type Translator interface {
	Refine(ctx context.Context, transcript string) (string, llm.Usage, error)
	Translate(ctx context.Context, text, targetLang, prior string) (string, llm.Usage, error)
}

// Synthesizer produces base64-encoded speech for a piece of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Publisher pushes an event to every listener on a channel.
type Publisher interface {
	Publish(channel string, payload interface{})
}

// Request is one submitted audio segment and everything needed to process it.
type Request struct {
	Audio       []byte
	MimeType    string
	SourceLang  string
	TargetLangs []string
	OutputMode  string
	Room        string
	Passcode    string
	Context     string // previous transcript, grounds the translation
}

// LanguageResult is the outcome of one target language's branch. A synthesis
// failure is recorded on the branch instead of failing the whole request.
type LanguageResult struct {
	Language    string  `json:"language"`
	Translation string  `json:"translation"`
	AudioBase64 *string `json:"audioBase64"`
	Error       string  `json:"error,omitempty"`
}

// Result is the aggregate returned to the submitting caller.
type Result struct {
	Transcript string           `json:"transcript"`
	Results    []LanguageResult `json:"results"`
	Usage      usage.Snapshot   `json:"usage"`
}

// TranslationEvent is what subscribers on a room:language channel receive.
type TranslationEvent struct {
	Type        string  `json:"type"`
	Room        string  `json:"room"`
	Language    string  `json:"language"`
	Transcript  string  `json:"transcript"`
	Translation string  `json:"translation"`
	AudioBase64 *string `json:"audioBase64"`
}

// Session orchestrates one room's translation pipeline: transcribe, refine,
// fan out per target language, publish, account usage.
type Session struct {
	Transcriber Transcriber
	Translator  Translator
	Synthesizer Synthesizer
	Publisher   Publisher
	Rooms       *room.Registry
	Usage       *usage.Accumulator
}

// Process runs the full pipeline for one submitted segment. Validation and
// authorization happen before any upstream call; a translate failure on any
// branch fails the whole request, while a synthesis failure stays confined
// to its branch.
func (s *Session) Process(ctx context.Context, req Request) (*Result, error) {
	if req.Passcode == "" {
		return nil, ErrPasscodeRequired
	}
	roomID := req.Room
	if roomID == "" {
		roomID = DefaultRoom
	}
	if !s.Rooms.BindOrCheck(roomID, req.Passcode) {
		return nil, ErrPasscodeMismatch
	}
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}

	langs := dedupeLanguages(req.TargetLangs)
	wantAudio := req.OutputMode == ModeAudio || req.OutputMode == ModeBoth

	raw, err := s.Transcriber.Transcribe(ctx, req.Audio, req.MimeType, req.SourceLang)
	if err != nil {
		return nil, err
	}
	transcript := s.refine(ctx, raw)

	results := make([]LanguageResult, len(langs))
	branchErrs := make([]error, len(langs))
	var wg sync.WaitGroup
	for i, lang := range langs {
		wg.Add(1)
		go func(i int, lang string) {
			defer wg.Done()
			results[i], branchErrs[i] = s.runBranch(ctx, roomID, lang, transcript, req.Context, wantAudio)
		}(i, lang)
	}
	wg.Wait()

	for _, err := range branchErrs {
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Transcript: transcript,
		Results:    results,
		Usage:      s.Usage.Snapshot(),
	}, nil
}

// refine asks the text model to clean up the raw transcript. Transcripts too
// short to mean anything skip the call, and any failure or empty answer
// falls back to the raw text.
func (s *Session) refine(ctx context.Context, raw string) string {
	if meaningfulLength(raw) < 2 {
		return raw
	}
	refined, u, err := s.Translator.Refine(ctx, raw)
	s.Usage.Add(u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	if err != nil || strings.TrimSpace(refined) == "" {
		return raw
	}
	return refined
}

// runBranch translates (and optionally voices) the transcript for one target
// language and publishes the result to that language's channel as soon as it
// is ready, independent of the other branches.
func (s *Session) runBranch(ctx context.Context, roomID, lang, transcript, prior string, wantAudio bool) (LanguageResult, error) {
	translated, u, err := s.Translator.Translate(ctx, transcript, lang, prior)
	s.Usage.Add(u.PromptTokens, u.CompletionTokens, u.TotalTokens)
	if err != nil {
		return LanguageResult{Language: lang}, err
	}

	result := LanguageResult{Language: lang, Translation: translated}
	if wantAudio && translated != "" {
		if audio, err := s.Synthesizer.Synthesize(ctx, translated); err != nil {
			result.Error = err.Error()
		} else {
			result.AudioBase64 = &audio
		}
	}

	s.Publisher.Publish(broadcast.ChannelKey(roomID, lang), TranslationEvent{
		Type:        "translation",
		Room:        roomID,
		Language:    lang,
		Transcript:  transcript,
		Translation: result.Translation,
		AudioBase64: result.AudioBase64,
	})
	return result, nil
}

// dedupeLanguages trims, case-insensitively dedupes, and defaults the target
// language list. First spelling wins.
func dedupeLanguages(langs []string) []string {
	out := make([]string, 0, len(langs))
	seen := make(map[string]struct{}, len(langs))
	for _, lang := range langs {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		key := strings.ToLower(lang)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, lang)
	}
	if len(out) == 0 {
		return []string{"English"}
	}
	return out
}

// meaningfulLength counts the characters that are not whitespace.
func meaningfulLength(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
