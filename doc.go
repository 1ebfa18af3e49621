// Package syncdb is an embedded, single-file, ordered key-value store.
//
// It exposes an ordered map from opaque byte keys to opaque byte values,
// backed by a memory-mapped B+tree file. Durable writes, point lookups,
// and snapshot reads all go through explicit transactions: a ReadTxn holds
// a consistent view of the committed state (a commit waits until every
// open ReadTxn has been closed), and a WriteTxn stages mutations in memory
// until Commit installs them atomically via the file header.
//
// Basic usage:
//
//	db, err := syncdb.Open("/path/to/db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	w, err := db.BeginWrite()
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Insert([]byte("hello"), []byte("world")); err != nil {
//		w.Abort()
//		log.Fatal(err)
//	}
//	if err := w.Commit(); err != nil {
//		log.Fatal(err)
//	}
//
//	r, err := db.BeginRead()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//	value, ok, err := r.Get([]byte("hello"))
//
// Deletion, range scans, secondary indexes, multi-writer concurrency,
// crash recovery via a write-ahead log, and page reclamation are out of
// scope; see DESIGN.md for the full list of non-goals.
package syncdb
