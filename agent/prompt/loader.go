package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

var (
	//go:embed template/replies.yaml
	repliesRaw []byte

	//go:embed template/responder.txt
	responderRaw string
)

var ErrReplyBook = errors.New("invalid reply book")

// Fallback kinds, one rotating variant list each.
const (
	FallbackUnavailable = "unavailable"
	FallbackFailed      = "failed"
	FallbackTimeout     = "timeout"
)

// ReplyBook holds the templated replies spoken by the agent.
type ReplyBook struct {
	Phases           map[string]string   `yaml:"phases"`
	Fallbacks        map[string][]string `yaml:"fallbacks"`
	SelfServe        string              `yaml:"self_serve"`
	BookingConfirmed string              `yaml:"booking_confirmed"`
	KnowledgeAnswer  string              `yaml:"knowledge_answer"`
}

// LoadReplyBook parses the embedded reply book.
func LoadReplyBook() (*ReplyBook, error) {
	return ParseReplyBook(repliesRaw)
}

func MustLoadReplyBook() *ReplyBook {
	book, err := LoadReplyBook()
	if err != nil {
		panic(err)
	}
	return book
}

func ParseReplyBook(raw []byte) (*ReplyBook, error) {
	var book ReplyBook
	if err := yaml.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplyBook, err)
	}
	if err := book.validate(); err != nil {
		return nil, err
	}
	return &book, nil
}

// validate requires a reply for every phase, every fixed template and at
// least two variants per fallback kind.
func (b *ReplyBook) validate() error {
	if len(b.Phases) == 0 {
		return fmt.Errorf("%w: no phase replies", ErrReplyBook)
	}
	for _, phase := range statex.Phases() {
		if b.Phase(string(phase)) == "" {
			return fmt.Errorf("%w: no reply for phase %s", ErrReplyBook, phase)
		}
	}
	for _, kind := range []string{FallbackUnavailable, FallbackFailed, FallbackTimeout} {
		if len(b.Fallbacks[kind]) < 2 {
			return fmt.Errorf("%w: fallback %q needs at least two variants", ErrReplyBook, kind)
		}
	}
	templates := map[string]string{
		"self_serve":        b.SelfServe,
		"booking_confirmed": b.BookingConfirmed,
		"knowledge_answer":  b.KnowledgeAnswer,
	}
	for _, name := range []string{"self_serve", "booking_confirmed", "knowledge_answer"} {
		if strings.TrimSpace(templates[name]) == "" {
			return fmt.Errorf("%w: %s reply is empty", ErrReplyBook, name)
		}
	}
	return nil
}

// Phase returns the reply for phase, or the empty string if none is defined.
func (b *ReplyBook) Phase(phase string) string {
	return strings.TrimSpace(b.Phases[phase])
}

// Fallback picks the variant at cursor, wrapping around the list.
func (b *ReplyBook) Fallback(kind string, cursor int) string {
	variants := b.Fallbacks[kind]
	if len(variants) == 0 {
		variants = b.Fallbacks[FallbackFailed]
	}
	if len(variants) == 0 {
		return ""
	}
	if cursor < 0 {
		cursor = -cursor
	}
	return strings.TrimSpace(variants[cursor%len(variants)])
}

// FallbackSize reports how many variants exist for kind.
func (b *ReplyBook) FallbackSize(kind string) int {
	if n := len(b.Fallbacks[kind]); n > 0 {
		return n
	}
	return len(b.Fallbacks[FallbackFailed])
}

// Render substitutes {name} placeholders in tmpl.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// ResponderPrompt returns the system prompt for reply rephrasing.
func ResponderPrompt() string {
	return strings.TrimSpace(responderRaw)
}
