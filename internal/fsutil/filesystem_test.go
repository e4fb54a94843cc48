package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_RoundTrip(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "reference", "town01")

	if err := fsys.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	name := filepath.Join(dir, "town01.csv")
	if err := fsys.WriteFile(name, []byte("x,y\n1,2\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "town01.csv" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	want := []byte("x,y\n0,0\n")
	if err := mfs.WriteFile("/out/line.csv", want, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := mfs.ReadFile("/out/line.csv")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("expected %q, got %q", want, got)
	}

	// Returned data must not alias the stored copy.
	got[0] = 'z'
	again, _ := mfs.ReadFile("/out/line.csv")
	if again[0] != 'x' {
		t.Error("ReadFile returned an aliased buffer")
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/runs/run.csv")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("x,y\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if data, _ := mfs.ReadFile("/runs/run.csv"); len(data) != 0 {
		t.Errorf("expected empty file before Close, got %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := mfs.Open("/runs/run.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "x,y\n" {
		t.Errorf("expected %q, got %q", "x,y\n", data)
	}
}

func TestMemoryFileSystem_NotExist(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open: expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.ReadFile("/missing"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile: expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat: expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.ReadDir("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDir: expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/ref/town02/town02.csv", []byte("x,y\n"), 0644)
	_ = mfs.WriteFile("/ref/town01/town01.csv", []byte("x,y\n"), 0644)
	_ = mfs.MkdirAll("/ref/empty", 0755)
	_ = mfs.WriteFile("/ref/notes.txt", []byte("hi"), 0644)

	entries, err := mfs.ReadDir("/ref")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	var names []string
	var dirs int
	for _, e := range entries {
		names = append(names, e.Name())
		if e.IsDir() {
			dirs++
		}
	}
	want := []string{"empty", "notes.txt", "town01", "town02"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if dirs != 3 {
		t.Errorf("expected 3 directories, got %d", dirs)
	}
}

func TestMemoryFileSystem_ExistsAndStat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a/b/c.txt", []byte("abc"), 0644)

	for _, p := range []string{"/a", "/a/b", "/a/b/c.txt", "/a/b/../b/c.txt"} {
		if !mfs.Exists(p) {
			t.Errorf("expected %s to exist", p)
		}
	}

	info, err := mfs.Stat("/a/b/c.txt")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 3 || info.IsDir() {
		t.Errorf("unexpected file info: size=%d dir=%v", info.Size(), info.IsDir())
	}

	info, err = mfs.Stat("/a/b")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected /a/b to be a directory")
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/out/runs/m/t/run-1/run.csv", nil, 0644)
	_ = mfs.WriteFile("/out/runs/m/t/run-1/result.txt", nil, 0644)
	_ = mfs.WriteFile("/out/reference/t/t.csv", nil, 0644)

	got := mfs.Files("/out/runs")
	if len(got) != 2 {
		t.Fatalf("expected 2 files, got %v", got)
	}
	if got[0] != "/out/runs/m/t/run-1/result.txt" {
		t.Errorf("expected sorted output, got %v", got)
	}
}
