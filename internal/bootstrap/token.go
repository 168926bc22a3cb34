package bootstrap

import "sync/atomic"

// Token tags a single backend call. Tokens from one Sequencer strictly
// increase in issue order.
type Token uint64

// Current reports whether a response tagged tok may be applied, given the
// latest token issued at the time the response arrived. Only the most
// recently issued call wins; completion order does not matter.
func Current(tok, latest Token) bool {
	return tok == latest
}

// Sequencer issues Tokens. The zero value is ready to use.
type Sequencer struct {
	n atomic.Uint64
}

func (s *Sequencer) Issue() Token {
	return Token(s.n.Add(1))
}

func (s *Sequencer) Latest() Token {
	return Token(s.n.Load())
}
