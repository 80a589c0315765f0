package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	SessionID   string
	ResumeKey   string
	SessionFile string
	Output      string
	Verbose     bool
}

// savedSession is the on-disk form of the session file
type savedSession struct {
	SessionID string `json:"sessionId"`
	ResumeKey string `json:"resumeKey,omitempty"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("NHCTL_SERVER", "http://localhost:8080"),
		SessionID:   os.Getenv("NHCTL_SESSION"),
		SessionFile: getEnvOrDefault("NHCTL_SESSION_FILE", defaultSessionFile()),
		Output:      "text",
		Verbose:     false,
	}
}

// LoadSession loads the session from file if not already set
func (c *Config) LoadSession() error {
	if c.SessionID != "" {
		return nil
	}

	data, err := os.ReadFile(c.SessionFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No session file is fine
		}
		return err
	}

	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return err
	}
	c.SessionID = saved.SessionID
	c.ResumeKey = saved.ResumeKey
	return nil
}

// SaveSession saves the session to the session file. A blank resume key
// keeps the one already known.
func (c *Config) SaveSession(sessionID, resumeKey string) error {
	if sessionID != c.SessionID || resumeKey != "" {
		c.ResumeKey = resumeKey
	}
	c.SessionID = sessionID

	dir := filepath.Dir(c.SessionFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.Marshal(savedSession{SessionID: c.SessionID, ResumeKey: c.ResumeKey})
	if err != nil {
		return err
	}
	return os.WriteFile(c.SessionFile, data, 0600)
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nhctl/session"
	}
	return filepath.Join(home, ".nhctl", "session")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
