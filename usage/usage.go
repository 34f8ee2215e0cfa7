package usage

import "sync"

// Rate holds the per-1K-token prices for one model.
type Rate struct {
	Input  float64
	Output float64
}

// rates is the static price table. Models not listed here cost 0.
var rates = map[string]Rate{
	"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006},
	"gpt-4o":        {Input: 0.0025, Output: 0.01},
	"gpt-4.1-mini":  {Input: 0.0004, Output: 0.0016},
	"gpt-3.5-turbo": {Input: 0.0005, Output: 0.0015},
}

// Snapshot is a point-in-time view of the accumulated usage, shaped for the
// JSON response body.
type Snapshot struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
	Model            string  `json:"model"`
}

// Accumulator tracks token consumption for the process lifetime. Totals only
// grow; Reset is the single way back to zero.
type Accumulator struct {
	mu         sync.Mutex
	model      string
	prompt     int
	completion int
	total      int
}

func NewAccumulator(model string) *Accumulator {
	return &Accumulator{model: model}
}

// Add folds one response's token counts into the running totals. Negative
// inputs are ignored so a bad upstream report can never shrink the counters.
func (a *Accumulator) Add(prompt, completion, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if prompt > 0 {
		a.prompt += prompt
	}
	if completion > 0 {
		a.completion += completion
	}
	if total > 0 {
		a.total += total
	}
}

// EstimateCost derives an approximate spend from the static rate table.
func (a *Accumulator) EstimateCost() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.costLocked()
}

func (a *Accumulator) costLocked() float64 {
	rate := rates[a.model]
	return float64(a.prompt)/1000*rate.Input + float64(a.completion)/1000*rate.Output
}

func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		PromptTokens:     a.prompt,
		CompletionTokens: a.completion,
		TotalTokens:      a.total,
		Cost:             a.costLocked(),
		Model:            a.model,
	}
}

// Reset zeroes the counters. Only called from the explicit admin endpoint,
// never as part of request handling.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.prompt = 0
	a.completion = 0
	a.total = 0
}
