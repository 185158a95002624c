// Package auth checks the Authorization header of API requests.
package auth

import (
	"crypto/subtle"
	"strings"
)

// Authorizer decides whether a request may proceed, given its raw
// Authorization header.
type Authorizer interface {
	Authorize(header string) bool
}

// StaticTokens accepts a fixed set of tokens, sent either bare or as
// "Bearer <token>".
type StaticTokens struct {
	tokens [][]byte
}

// NewStaticTokens builds an Authorizer from tokens. Blank tokens are
// ignored; with none left every request is refused.
func NewStaticTokens(tokens ...string) *StaticTokens {
	s := &StaticTokens{}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			s.tokens = append(s.tokens, []byte(t))
		}
	}
	return s
}

func (s *StaticTokens) Authorize(header string) bool {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		header = strings.TrimSpace(rest)
	}
	if header == "" {
		return false
	}

	got := []byte(header)
	match := 0
	for _, t := range s.tokens {
		match |= subtle.ConstantTimeCompare(got, t)
	}
	return match == 1
}

// AllowAll accepts every request. It is meant for local development.
type AllowAll struct{}

func (AllowAll) Authorize(string) bool { return true }
