package manifest

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	rtest "github.com/asmfreak/arensync/internal/test"
)

func TestDiff(t *testing.T) {
	var tests = []struct {
		name         string
		local, known Inventory
		want         []string
	}{
		{
			name:  "first upload",
			local: Inventory{"a": digest("a"), "b": digest("b")},
			known: Inventory{},
			want:  []string{"a", "b"},
		},
		{
			name:  "unchanged",
			local: Inventory{"a": digest("a"), "b": digest("b")},
			known: Inventory{"a": digest("a"), "b": digest("b")},
			want:  nil,
		},
		{
			name:  "new file",
			local: Inventory{"a": digest("a"), "c": digest("c")},
			known: Inventory{"a": digest("a")},
			want:  []string{"c"},
		},
		{
			name:  "modified file",
			local: Inventory{"a": digest("a2"), "b": digest("b")},
			known: Inventory{"a": digest("a"), "b": digest("b")},
			want:  []string{"a"},
		},
		{
			name:  "deleted file",
			local: Inventory{"a": digest("a")},
			known: Inventory{"a": digest("a"), "gone": digest("gone")},
			want:  nil,
		},
		{
			name:  "moved file",
			local: Inventory{"new/place": digest("x")},
			known: Inventory{"old/place": digest("x")},
			want:  []string{"new/place"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			changes := Diff(test.local, test.known)
			if len(test.want) == 0 {
				rtest.Equals(t, 0, len(changes))
				return
			}
			if diff := cmp.Diff(test.want, changes.Paths()); diff != "" {
				t.Errorf("wrong changes (-want +got):\n%s", diff)
			}
			for _, e := range changes {
				rtest.Equals(t, test.local[e.Path], e.Digest)
			}
		})
	}
}

func randomInventory(rnd *rand.Rand, n int) Inventory {
	inv := make(Inventory)
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("dir%d/file%d", rnd.Intn(5), rnd.Intn(50))
		inv[p] = digest(fmt.Sprint(rnd.Intn(3)))
	}
	return inv
}

func TestDiffProperties(t *testing.T) {
	rnd := rand.New(rand.NewSource(23))

	for i := 0; i < 100; i++ {
		local := randomInventory(rnd, 40)
		known := randomInventory(rnd, 40)

		changes := Diff(local, known)
		inChanges := make(map[string]bool)
		for j, e := range changes {
			if j > 0 {
				rtest.Assert(t, changes[j-1].Path < e.Path, "changes not sorted")
			}
			inChanges[e.Path] = true
		}

		// an entry is reported iff it is not part of known
		for p, d := range local {
			kd, ok := known[p]
			rtest.Equals(t, !ok || kd != d, inChanges[p])
		}

		// after publishing the changes nothing is left to do
		after := make(Inventory)
		for p, d := range known {
			after[p] = d
		}
		for _, e := range changes {
			after.Add(e)
		}
		rtest.Equals(t, 0, len(Diff(local, after)))
	}
}
