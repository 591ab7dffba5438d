package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoAdminKey  = errors.New("admin key not configured")
	ErrInvalidKey  = errors.New("invalid admin key")
	ErrKeyTooShort = errors.New("admin key must be at least 16 chars")
)

const minKeyLength = 16

// HashKey returns the bcrypt hash to put in KEPLERHUB_ADMIN_KEY_HASH.
func HashKey(key string) (string, error) {
	if len(key) < minKeyLength {
		return "", ErrKeyTooShort
	}
	if len(key) > 72 {
		return "", errors.New("admin key must be at most 72 chars")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}

// KeyVerifier checks presented admin keys against a bcrypt hash.
type KeyVerifier struct {
	Hash string
}

func (v KeyVerifier) Enabled() bool { return v.Hash != "" }

func (v KeyVerifier) Verify(key string) error {
	if !v.Enabled() {
		return ErrNoAdminKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(v.Hash), []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// Revocations remembers revoked token IDs until the token would have
// expired anyway.
type Revocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{ids: make(map[string]time.Time), now: time.Now}
}

func (r *Revocations) Revoke(id string, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	r.ids[id] = until
}

func (r *Revocations) IsRevoked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.ids[id]
	return ok && r.now().Before(until)
}

func (r *Revocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	return len(r.ids)
}

// prune drops expired entries; callers hold mu.
func (r *Revocations) prune() {
	now := r.now()
	for id, until := range r.ids {
		if !now.Before(until) {
			delete(r.ids, id)
		}
	}
}
