package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/numberhunt/internal/model"
)

// Errors
var (
	ErrResumeKeyMismatch = errors.New("resume key does not match session")
)

// Service issues and checks the secret resume keys that prove possession
// of a session token
type Service struct {
	requireResumeKey bool
	cost             int
}

// Config holds configuration for the auth service
type Config struct {
	// RequireResumeKey rejects resumes of a known token without its key
	RequireResumeKey bool

	// Cost is the bcrypt cost used to hash resume keys
	Cost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		RequireResumeKey: false,
		Cost:             bcrypt.MinCost,
	}
}

// New creates a new auth Service
func New(cfg Config) *Service {
	if cfg.Cost == 0 {
		cfg.Cost = DefaultConfig().Cost
	}
	return &Service{
		requireResumeKey: cfg.RequireResumeKey,
		cost:             cfg.Cost,
	}
}

// RequiresResumeKey reports whether resumes are checked
func (s *Service) RequiresResumeKey() bool {
	return s.requireResumeKey
}

// IssueResumeKey mints a fresh key and returns it with its hash. Only the
// hash should be retained.
func (s *Service) IssueResumeKey() (string, []byte, error) {
	key := s.generateKey()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("hash resume key: %w", err)
	}
	return key, hash, nil
}

// AuthorizeResume checks that key proves possession of the identity.
// Identities without a stored hash, and every resume when enforcement is
// off, are accepted.
func (s *Service) AuthorizeResume(identity *model.Identity, key string) error {
	if !s.requireResumeKey || len(identity.ResumeKeyHash) == 0 {
		return nil
	}
	if key == "" {
		return ErrResumeKeyMismatch
	}
	if err := bcrypt.CompareHashAndPassword(identity.ResumeKeyHash, []byte(key)); err != nil {
		return ErrResumeKeyMismatch
	}
	return nil
}

// generateKey generates a random URL-safe key
func (s *Service) generateKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "rk_" + base64.RawURLEncoding.EncodeToString(b)
}
