package syncdb

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

// TestMatchesBoltOrderedReads cross-checks this package's read behavior
// against go.etcd.io/bbolt, an independently implemented B+tree store, by
// loading the same key/value pairs into both and comparing every lookup.
// bbolt is used purely as a test oracle here; it is never imported outside
// _test.go files.
func TestMatchesBoltOrderedReads(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	keys := make([]string, 500)
	values := make([]string, 500)
	for i := range keys {
		keys[i] = fmt.Sprintf("k-%05d", rng.Intn(1_000_000))
		values[i] = fmt.Sprintf("v-%d", i)
	}

	db := openTestDb(t)
	w, err := db.BeginWrite()
	if err != nil {
		t.Fatal(err)
	}
	for i := range keys {
		if err := w.Insert([]byte(keys[i]), []byte(values[i])); err != nil {
			w.Abort()
			t.Fatal(err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	boltPath := filepath.Join(t.TempDir(), "oracle.bolt")
	bdb, err := bolt.Open(boltPath, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer bdb.Close()

	bucketName := []byte("kv")
	err = bdb.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		for i := range keys {
			if err := b.Put([]byte(keys[i]), []byte(values[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := db.BeginRead()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	err = bdb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		// The random keys may repeat, so reduce the input to its
		// last-write-wins view first and require both stores to match it.
		seen := map[string]string{}
		for i := range keys {
			seen[keys[i]] = values[i]
		}
		for key, want := range seen {
			boltValue := b.Get([]byte(key))
			if string(boltValue) != want {
				t.Fatalf("oracle mismatch for %q: bolt has %q, want %q", key, boltValue, want)
			}
			ours, ok, err := r.Get([]byte(key))
			if err != nil {
				return err
			}
			if !ok || string(ours) != want {
				t.Fatalf("key %q: got (%q, %v), want (%q, true)", key, ours, ok, want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
