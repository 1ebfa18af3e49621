//go:build unix

package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestFile(t *testing.T, size int) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapped")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestMapReadWrite(t *testing.T) {
	f := openTestFile(t, 4096)
	m, err := New(int(f.Fd()), 4096, true)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	copy(m.Data(), []byte("hello"))
	if err := m.Sync(); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, 5)
	if _, err := f.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestMapRemapGrows(t *testing.T) {
	f := openTestFile(t, 4096)
	m, err := New(int(f.Fd()), 4096, true)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := f.Truncate(8192); err != nil {
		t.Fatal(err)
	}
	if err := m.Remap(8192); err != nil {
		t.Fatal(err)
	}
	if m.Size() != 8192 {
		t.Fatalf("got size %d, want 8192", m.Size())
	}
	if len(m.Data()) != 8192 {
		t.Fatalf("got data len %d, want 8192", len(m.Data()))
	}
}

func TestNewRejectsZeroSize(t *testing.T) {
	f := openTestFile(t, 4096)
	if _, err := New(int(f.Fd()), 0, true); err == nil {
		t.Fatal("expected an error for a zero-length mapping")
	}
}
