// extensions/hmi/prompt.go
//
// Prompt: the parameters of a popup request.
//
// Context
// -------
// Native code fills a Prompt and hands it to PopupBridge.Request.  The view
// layer renders it and may answer with Respond; native callers that care
// about the answer block in Wait, everyone else ignores it.
//
// Validation uses go-playground/validator tags.  An invalid Prompt fails
// only its own request.
//
// Notes
// -----
//   - A Prompt holds synchronisation state; always pass it by pointer.
//   - Oxford commas, two spaces after periods.
package hmi

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

// Kind selects how the view layer styles a popup.
type Kind string

const (
	KindNote     Kind = "note"
	KindWarning  Kind = "warning"
	KindQuestion Kind = "question"
	KindCritical Kind = "critical"
)

// Button is one answer a popup offers.
type Button string

const (
	ButtonOK      Button = "ok"
	ButtonCancel  Button = "cancel"
	ButtonYes     Button = "yes"
	ButtonNo      Button = "no"
	ButtonRetry   Button = "retry"
	ButtonIgnore  Button = "ignore"
	ButtonAbort   Button = "abort"
	ButtonApply   Button = "apply"
	ButtonClose   Button = "close"
	ButtonDiscard Button = "discard"
)

var (
	// ErrAlreadyAnswered is returned by Respond on an answered Prompt.
	ErrAlreadyAnswered = errors.New("hmi: prompt already answered")
	// ErrButtonNotOffered is returned when the answer is not in Buttons.
	ErrButtonNotOffered = errors.New("hmi: button not offered by prompt")
)

var validate = validator.New()

// Prompt describes a single popup.
type Prompt struct {
	ID              uint64   `json:"id"`
	Kind            Kind     `json:"kind"                      validate:"oneof=note warning question critical"`
	Text            string   `json:"text"                      validate:"required,max=1024"`
	InformativeText string   `json:"informativeText,omitempty" validate:"max=4096"`
	DetailedText    string   `json:"detailedText,omitempty"    validate:"max=65536"`
	Buttons         []Button `json:"buttons"                   validate:"min=1,unique,dive,oneof=ok cancel yes no retry ignore abort apply close discard"`

	claimed  atomic.Bool
	once     sync.Once
	mu       sync.Mutex
	answered bool
	answer   Button
	done     chan struct{}
}

// Note builds an informational prompt with an OK button.
func Note(text string) *Prompt { return &Prompt{Kind: KindNote, Text: text} }

// Warning builds a warning prompt with an OK button.
func Warning(text string) *Prompt { return &Prompt{Kind: KindWarning, Text: text} }

// Question builds a yes/no prompt.
func Question(text string) *Prompt { return &Prompt{Kind: KindQuestion, Text: text} }

// Critical builds a critical prompt with an OK button.
func Critical(text string) *Prompt { return &Prompt{Kind: KindCritical, Text: text} }

// applyDefaults fills Kind and Buttons when the caller left them empty.
func (p *Prompt) applyDefaults() {
	if p.Kind == "" {
		p.Kind = KindNote
	}
	if len(p.Buttons) == 0 {
		if p.Kind == KindQuestion {
			p.Buttons = []Button{ButtonYes, ButtonNo}
		} else {
			p.Buttons = []Button{ButtonOK}
		}
	}
}

// Validate checks the prompt against its tags.
func (p *Prompt) Validate() error {
	return validate.Struct(p)
}

func (p *Prompt) init() {
	p.once.Do(func() { p.done = make(chan struct{}) })
}

// Respond records the view layer's answer.  Only the first answer counts.
func (p *Prompt) Respond(b Button) error {
	if !slices.Contains(p.Buttons, b) {
		return ErrButtonNotOffered
	}
	p.init()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.answered {
		return ErrAlreadyAnswered
	}
	p.answered = true
	p.answer = b
	close(p.done)
	return nil
}

// Answered reports whether Respond has succeeded.
func (p *Prompt) Answered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answered
}

// Wait blocks until the prompt is answered or ctx is done.  Every waiter
// sees the same answer.
func (p *Prompt) Wait(ctx context.Context) (Button, error) {
	p.init()
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
