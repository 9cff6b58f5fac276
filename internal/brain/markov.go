// Package brain implements the text generator behind conversations: a word
// level Markov chain over a pluggable store.
package brain

import (
	"context"
	"fmt"
	"strings"
)

// Brain learns from messages and produces replies.
type Brain interface {
	Learn(ctx context.Context, text string) error
	Generate(ctx context.Context) (string, error)
}

// Store is a multiset table: each key maps to a bag of values.
type Store interface {
	Add(ctx context.Context, key, value string) error
	// Random returns a value drawn from key's bag, weighted by multiplicity.
	Random(ctx context.Context, key string) (string, bool, error)
}

const (
	startKey = "\x00start"
	endToken = "\x00end"

	defaultMaxWords = 40
)

// Markov is an order-2 word chain.
type Markov struct {
	store    Store
	maxWords int
}

// NewMarkov creates a chain backed by store.
func NewMarkov(store Store) *Markov {
	return &Markov{store: store, maxWords: defaultMaxWords}
}

// Learn records every word triple of text. Messages shorter than two words
// carry no transitions and are ignored.
func (m *Markov) Learn(ctx context.Context, text string) error {
	words := strings.Fields(text)
	if len(words) < 2 {
		return nil
	}
	if err := m.store.Add(ctx, startKey, words[0]+" "+words[1]); err != nil {
		return fmt.Errorf("learn start: %w", err)
	}

	chain := append(words, endToken)
	for i := 0; i+2 < len(chain); i++ {
		if err := m.store.Add(ctx, chain[i]+" "+chain[i+1], chain[i+2]); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
	}
	return nil
}

// Generate walks the chain from a random start. An empty brain yields "".
func (m *Markov) Generate(ctx context.Context) (string, error) {
	start, ok, err := m.store.Random(ctx, startKey)
	if err != nil || !ok {
		return "", err
	}

	out := strings.Fields(start)
	for len(out) < m.maxWords {
		next, ok, err := m.store.Random(ctx, out[len(out)-2]+" "+out[len(out)-1])
		if err != nil {
			return "", err
		}
		if !ok || next == endToken {
			break
		}
		out = append(out, next)
	}
	return strings.Join(out, " "), nil
}
