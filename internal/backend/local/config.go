package local

import (
	"strings"

	"github.com/asmfreak/arensync/internal/errors"
)

// Config holds all information needed to open a local store.
type Config struct {
	Path string
}

// ParseConfig parses a local backend config of the form "local:/path".
func ParseConfig(s string) (*Config, error) {
	if !strings.HasPrefix(s, "local:") {
		return nil, errors.New(`invalid format, prefix "local" not found`)
	}

	p := s[6:]
	if p == "" {
		return nil, errors.New("invalid format, no directory specified")
	}

	return &Config{Path: p}, nil
}
