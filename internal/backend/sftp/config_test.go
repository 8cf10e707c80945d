package sftp

import (
	"testing"

	rtest "github.com/asmfreak/arensync/internal/test"
)

var configTests = []struct {
	s   string
	cfg Config
}{
	// first form, user specified sftp://user@host/dir
	{"sftp://user@host/dir/subdir", Config{User: "user", Host: "host", Path: "dir/subdir", SSH: "ssh"}},
	{"sftp://host/dir/subdir", Config{Host: "host", Path: "dir/subdir", SSH: "ssh"}},
	{"sftp://host//dir/subdir", Config{Host: "host", Path: "/dir/subdir", SSH: "ssh"}},
	{"sftp://host:10022//dir/subdir", Config{Host: "host", Port: "10022", Path: "/dir/subdir", SSH: "ssh"}},
	{"sftp://user@host:10022//dir/subdir", Config{User: "user", Host: "host", Port: "10022", Path: "/dir/subdir", SSH: "ssh"}},
	{"sftp://user@host/dir/subdir/../other", Config{User: "user", Host: "host", Path: "dir/other", SSH: "ssh"}},
	{"sftp://user@host/dir///subdir", Config{User: "user", Host: "host", Path: "dir/subdir", SSH: "ssh"}},

	// IPv6 address.
	{"sftp://user@[::1]/dir", Config{User: "user", Host: "::1", Path: "dir", SSH: "ssh"}},
	// IPv6 address with port.
	{"sftp://user@[::1]:22/dir", Config{User: "user", Host: "::1", Port: "22", Path: "dir", SSH: "ssh"}},

	// second form, user specified sftp:user@host:/dir
	{"sftp:user@host:/dir/subdir", Config{User: "user", Host: "host", Path: "/dir/subdir", SSH: "ssh"}},
	{"sftp:user@domain@host:/dir/subdir", Config{User: "user@domain", Host: "host", Path: "/dir/subdir", SSH: "ssh"}},
	{"sftp:host:../dir/subdir", Config{Host: "host", Path: "../dir/subdir", SSH: "ssh"}},
	{"sftp:user@host:dir/subdir:suffix", Config{User: "user", Host: "host", Path: "dir/subdir:suffix", SSH: "ssh"}},
	{"sftp:user@host:dir/subdir/../other", Config{User: "user", Host: "host", Path: "dir/other", SSH: "ssh"}},
	{"sftp:user@host:dir///subdir", Config{User: "user", Host: "host", Path: "dir/subdir", SSH: "ssh"}},
}

func TestParseConfig(t *testing.T) {
	for _, test := range configTests {
		t.Run(test.s, func(t *testing.T) {
			cfg, err := ParseConfig(test.s)
			rtest.OK(t, err)
			rtest.Equals(t, test.cfg, *cfg)
		})
	}
}

var configTestsInvalid = []string{
	"sftp://host:dir",
	"sftp:host",
	"sftp::/dir",
	"sftp:user@host:",
	"sftp:host:~/backup",
	"local:/dir",
}

func TestParseConfigInvalid(t *testing.T) {
	for i, test := range configTestsInvalid {
		_, err := ParseConfig(test)
		if err == nil {
			t.Errorf("test %d: invalid config %s did not return an error", i, test)
			continue
		}
	}
}
