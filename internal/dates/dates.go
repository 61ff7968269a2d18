// Package dates parses date and datetime strings on a best-effort basis.
// Fixed layouts are tried first; natural-language expressions such as
// "next friday" are accepted when enabled.
package dates

import (
	"errors"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnparsable is returned for non-empty values that match no layout.
var ErrUnparsable = errors.New("unparsable date")

// layouts are tried in order.
var layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parser converts raw strings into times.
type Parser struct {
	natural *when.Parser
	now     func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithNatural enables natural-language parsing.
func WithNatural() Option {
	return func(p *Parser) {
		w := when.New(nil)
		w.Add(en.All...)
		w.Add(common.All...)
		p.natural = w
	}
}

// WithClock sets the base time for relative expressions.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// NewParser returns a Parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DateTime parses s into a UTC time. Empty input returns (nil, nil).
func (p *Parser) DateTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if p.natural != nil {
		r, err := p.natural.Parse(s, p.now())
		if err == nil && r != nil && strings.EqualFold(strings.TrimSpace(r.Text), s) {
			t := r.Time.UTC().Truncate(time.Second)
			return &t, nil
		}
	}
	return nil, ErrUnparsable
}

// Date parses s like DateTime and truncates the result to midnight UTC.
func (p *Parser) Date(s string) (*time.Time, error) {
	t, err := p.DateTime(s)
	if t == nil || err != nil {
		return nil, err
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d, nil
}
