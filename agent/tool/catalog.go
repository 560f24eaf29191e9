package tool

import (
	"errors"
	"fmt"
	"sort"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
)

var ErrUnknownCapability = errors.New("unknown capability")

// Entry binds a capability to the retry policy of its call site.
type Entry struct {
	Capability contractx.Capability
	Policy     resiliencex.Policy
	// Gating entries must succeed before the turn's phase change is
	// committed. Non-gating entries are fire-and-report.
	Gating bool
}

type Catalog struct {
	entries map[string]Entry
}

func NewCatalog(entries ...Entry) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Capability == nil {
			return nil, fmt.Errorf("%w: nil capability", contractx.ErrValidation)
		}
		name := e.Capability.Name()
		if _, dup := c.entries[name]; dup {
			return nil, fmt.Errorf("%w: duplicate capability %s", contractx.ErrValidation, name)
		}
		c.entries[name] = e
	}
	return c, nil
}

func (c *Catalog) Get(name string) (Entry, error) {
	if c == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	e, ok := c.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return e, nil
}

func (c *Catalog) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.entries[name]
	return ok
}

func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.entries))
	for name := range c.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
