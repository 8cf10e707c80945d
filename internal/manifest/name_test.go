package manifest

import (
	"sort"
	"testing"
	"time"

	rtest "github.com/asmfreak/arensync/internal/test"
)

func TestArchiveNameFormat(t *testing.T) {
	ts := time.Date(2017, 1, 2, 15, 4, 5, 999, time.UTC)
	n := NewArchiveName(ts)

	rtest.Equals(t, "archive20170102_150405.tar.gz", n.String())
	rtest.Equals(t, "archive20170102_150405.tar.gz.lst", n.Manifest())
	rtest.Equals(t, "archive20170102_150405.tar.gz.gpg", n.Payload(".gpg"))
	rtest.Equals(t, "archive20170102_150405.tar.gz.gpg.sum", n.Checksum(".gpg"))
	rtest.Assert(t, n.CreatedAt().Equal(ts.Truncate(time.Second)), "wrong creation time %v", n.CreatedAt())
}

func TestParseArchiveName(t *testing.T) {
	want := NewArchiveName(time.Date(2017, 1, 2, 15, 4, 5, 0, time.UTC))

	for _, name := range []string{
		"archive20170102_150405.tar.gz",
		"archive20170102_150405.tar.gz.lst",
		"archive20170102_150405.tar.gz.gpg",
		"archive20170102_150405.tar.gz.gpg.sum",
		"archive20170102_150405.tar.gz.age",
	} {
		n, err := ParseArchiveName(name)
		rtest.OK(t, err)
		rtest.Equals(t, want.String(), n.String())
		rtest.Assert(t, n.CreatedAt().Equal(want.CreatedAt()), "%v: wrong time %v", name, n.CreatedAt())
	}
}

func TestParseArchiveNameInvalid(t *testing.T) {
	for _, name := range []string{
		"",
		"archive",
		"notes.txt",
		"archive2017.tar.gz.lst",
		"archive20171302_150405.tar.gz.lst",
		"archive20170102_150405.zip",
		"backup20170102_150405.tar.gz.lst",
	} {
		_, err := ParseArchiveName(name)
		rtest.Assert(t, err != nil, "expected error for %q", name)
	}
}

func TestArchiveNameOrder(t *testing.T) {
	base := time.Date(2020, 12, 31, 23, 59, 58, 0, time.UTC)
	var names []ArchiveName
	var strs []string
	for i := 5; i >= 0; i-- {
		n := NewArchiveName(base.Add(time.Duration(i) * 7 * time.Hour))
		names = append(names, n)
		strs = append(strs, n.String())
	}

	sort.Slice(names, func(i, j int) bool { return names[i].Less(names[j]) })
	sort.Strings(strs)

	for i := range names {
		rtest.Equals(t, strs[i], names[i].String())
	}
}

func TestArchiveNameNext(t *testing.T) {
	n := NewArchiveName(time.Date(2020, 12, 31, 23, 59, 59, 0, time.UTC))
	rtest.Equals(t, "archive20210101_000000.tar.gz", n.Next().String())
	rtest.Assert(t, n.Less(n.Next()), "next name must sort after the original")
}
