// Package token mints the opaque tokens that bind verification dialogs and
// adult sessions to a single user. Tokens are hex digests over the user id,
// the current time and a random block, so they are unguessable but cheap to
// compare.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	// VerificationTokenLen is the hex length of a verification token.
	VerificationTokenLen = 16
	// SessionTokenLen is the hex length of a session token.
	SessionTokenLen = 32

	verificationRandomBytes = 8
	sessionRandomBytes      = 16
)

type Service struct {
	random io.Reader
	now    func() time.Time
}

// Option mutates a Service during construction; used by tests to pin the
// clock or the random source.
type Option func(*Service)

func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.random = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		random: rand.Reader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewVerificationToken returns a 16-char hex token for the multi-step
// verification dialog.
func (s *Service) NewVerificationToken(userID string) (string, error) {
	return s.digest(userID, verificationRandomBytes, VerificationTokenLen)
}

// NewSessionToken returns a 32-char hex token for an adult session.
func (s *Service) NewSessionToken(userID string) (string, error) {
	return s.digest(userID, sessionRandomBytes, SessionTokenLen)
}

func (s *Service) digest(userID string, randomBytes, hexLen int) (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte(fmt.Sprintf("%d", s.now().UnixNano())))
	h.Write(buf)

	return hex.EncodeToString(h.Sum(nil))[:hexLen], nil
}

// ValidVerification reports whether a verification token issued at createdAt
// is still inside its window.
func ValidVerification(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) <= ttl
}
