// Package producer abstracts the generative model as an opaque token producer.
package producer

import (
	"context"
)

// Request describes one generation run.
type Request struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// Producer opens a token stream for a request.
type Producer interface {
	Open(ctx context.Context, req Request) (TokenStream, error)
}

// TokenStream yields output tokens one by one.
// Next returns io.EOF when the producer is exhausted.
// Both Next and the whole stream honor context cancellation,
// cancelling the context aborts the generation mid-flight.
type TokenStream interface {
	Next(ctx context.Context) (string, error)
	Close() error
}
