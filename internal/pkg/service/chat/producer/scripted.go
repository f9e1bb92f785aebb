package producer

import (
	"context"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scripted is a Producer for tests: it yields a fixed token sequence
// at a fixed cadence and can be configured to fail mid-stream.
type Scripted struct {
	clock    clockwork.Clock
	tokens   []string
	interval time.Duration
	failErr  error // returned instead of io.EOF, if set
}

type ScriptedOption func(p *Scripted)

// WithFailure makes the stream end with the error instead of a clean io.EOF.
func WithFailure(err error) ScriptedOption {
	return func(p *Scripted) {
		p.failErr = err
	}
}

func NewScripted(clock clockwork.Clock, tokens []string, interval time.Duration, opts ...ScriptedOption) *Scripted {
	p := &Scripted{clock: clock, tokens: tokens, interval: interval}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Scripted) Open(context.Context, Request) (TokenStream, error) {
	return &scriptedStream{producer: p}, nil
}

type scriptedStream struct {
	producer *Scripted
	position int
}

func (s *scriptedStream) Next(ctx context.Context) (string, error) {
	p := s.producer
	if s.position >= len(p.tokens) {
		if p.failErr != nil {
			return "", p.failErr
		}
		return "", io.EOF
	}

	// One production step takes the configured interval.
	if p.interval > 0 {
		select {
		case <-p.clock.After(p.interval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}

	token := p.tokens[s.position]
	s.position++
	return token, nil
}

func (s *scriptedStream) Close() error {
	return nil
}
