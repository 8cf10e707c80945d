// Package location implements parsing the remote store location from a string.
package location

import (
	"strings"

	"github.com/asmfreak/arensync/internal/backend/local"
	"github.com/asmfreak/arensync/internal/backend/sftp"
	"github.com/asmfreak/arensync/internal/errors"
)

// Location specifies the location of a remote store. Config is either a
// *local.Config or a *sftp.Config.
type Location struct {
	Scheme string
	Config interface{}
}

func isPath(s string) bool {
	if strings.HasPrefix(s, "../") || strings.HasPrefix(s, `..\`) || strings.HasPrefix(s, "./") {
		return true
	}

	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) {
		return true
	}

	if len(s) < 3 {
		return false
	}

	// check for drive paths
	drive := s[0]
	if !(drive >= 'a' && drive <= 'z') && !(drive >= 'A' && drive <= 'Z') {
		return false
	}

	if s[1] != ':' {
		return false
	}

	if s[2] != '\\' && s[2] != '/' {
		return false
	}

	return true
}

// Parse extracts the store location from the string s. The accepted forms
// are "sftp:user@host:dir", "sftp://user@host:port/dir", "local:dir" and a
// plain directory name, which is interpreted as a local directory.
func Parse(s string) (u Location, err error) {
	scheme := extractScheme(s)

	switch scheme {
	case "sftp":
		u.Scheme = scheme
		u.Config, err = sftp.ParseConfig(s)
		if err != nil {
			return Location{}, err
		}
		return u, nil
	case "local":
		u.Scheme = scheme
		u.Config, err = local.ParseConfig(s)
		if err != nil {
			return Location{}, err
		}
		return u, nil
	}

	// if s is not a path or contains ":", it's ambiguous
	if !isPath(s) && strings.ContainsRune(s, ':') {
		return Location{}, errors.New("invalid backend\nIf the store is in a local directory, you need to add a `local:` prefix")
	}

	if s == "" {
		return Location{}, errors.New("empty location")
	}

	u.Scheme = "local"
	u.Config, err = local.ParseConfig("local:" + s)
	if err != nil {
		return Location{}, err
	}

	return u, nil
}

func extractScheme(s string) string {
	scheme, _, _ := strings.Cut(s, ":")
	return scheme
}
