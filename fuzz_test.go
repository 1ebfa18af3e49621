package syncdb

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/syncdb-io/syncdb/diag"
	"github.com/syncdb-io/syncdb/internal/page"
)

// FuzzInsertThenGet checks two properties that must hold for any sequence
// of inserts: every inserted key reads back the most recently inserted
// value for it, and the resulting tree passes structural validation.
func FuzzInsertThenGet(f *testing.F) {
	f.Add([]byte("a"), []byte("1"))
	f.Add([]byte(""), []byte("nonempty"))
	f.Add([]byte("duplicate"), []byte("first"))

	sentinel := []byte("\xffsentinel")

	f.Fuzz(func(t *testing.T, key, value []byte) {
		if len(key) > 65535 || len(value) > 65535 {
			t.Skip("oversized input is rejected by design; covered elsewhere")
		}

		db, err := Open(filepath.Join(t.TempDir(), "db"))
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()

		w, err := db.BeginWrite()
		if err != nil {
			t.Fatal(err)
		}
		if len(key)+len(value)+page.LeafElementSize > page.BodySize ||
			len(key)+2*page.BranchElementSize > page.BodySize {
			// The pair cannot fit in a single page; the insert must be
			// rejected outright rather than looping on splits.
			if err := w.Insert(key, value); Code(err) != ErrPageFull {
				t.Fatalf("got %v, want ErrPageFull for an unstorable record", err)
			}
			w.Abort()
			return
		}
		if err := w.Insert(key, value); err != nil {
			w.Abort()
			t.Fatal(err)
		}
		// Insert a second, fixed key so the tree always has at least two
		// entries to keep ordering invariants meaningful.
		if err := w.Insert(sentinel, []byte("s")); err != nil {
			w.Abort()
			t.Fatal(err)
		}
		if err := w.Commit(); err != nil {
			t.Fatal(err)
		}

		r, err := db.BeginRead()
		if err != nil {
			t.Fatal(err)
		}
		defer r.Close()

		want := value
		if bytes.Equal(key, sentinel) {
			// The sentinel insert was the last write for this key.
			want = []byte("s")
		}
		got, ok, err := r.Get(key)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(got) != string(want) {
			t.Fatalf("got (%q, %v), want (%q, true)", got, ok, want)
		}

		report := diag.WalkTree(r, r.RootPageID())
		if !report.OK() {
			t.Fatalf("tree invariants violated: %v", report.Findings)
		}
	})
}
