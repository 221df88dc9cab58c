package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_CreateOpenStat(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := osfs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	name := filepath.Join(dir, "events.csv")
	w, err := osfs.Create(name)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := io.WriteString(w, "t,x\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !osfs.Exists(name) {
		t.Error("expected created file to exist")
	}
	info, err := osfs.Stat(name)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("expected size 4, got %d", info.Size())
	}
	f, err := osfs.Open(name)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "t,x\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/stats.csv")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("collid\n1\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if data, _ := mfs.ReadFile("/out/stats.csv"); len(data) != 0 {
		t.Errorf("expected no content before Close, got %q", data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err := mfs.ReadFile("/out/stats.csv")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "collid\n1\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/data/input.csv", []byte("t;x\n1;2\n"))

	f, err := mfs.Open("/data/../data/input.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "input.csv" || info.Size() != 8 {
		t.Errorf("unexpected info %s %d", info.Name(), info.Size())
	}
	data, _ := io.ReadAll(f)
	if string(data) != "t;x\n1;2\n" {
		t.Errorf("unexpected content %q", data)
	}

	_, err = mfs.Open("/missing.csv")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Dirs(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/out/arcos_output/20260101", 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	for _, p := range []string{"/out", "/out/arcos_output", "/out/arcos_output/20260101"} {
		if !mfs.Exists(p) {
			t.Errorf("expected %s to exist", p)
		}
	}
	info, err := mfs.Stat("/out/arcos_output")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.IsDir() || !info.Mode().IsDir() {
		t.Error("expected a directory")
	}
	if _, err := mfs.Stat("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/out/b.csv", nil)
	mfs.WriteFile("/out/a.csv", nil)
	mfs.WriteFile("/other/c.csv", nil)

	got := mfs.Files("/out")
	if len(got) != 2 || got[0] != "/out/a.csv" || got[1] != "/out/b.csv" {
		t.Errorf("unexpected files %v", got)
	}
}

func TestMemoryFileSystem_DataIsolation(t *testing.T) {
	mfs := NewMemoryFileSystem()
	src := []byte("abc")
	mfs.WriteFile("/f", src)
	src[0] = 'x'

	data, _ := mfs.ReadFile("/f")
	if string(data) != "abc" {
		t.Errorf("stored data changed with the caller's slice: %q", data)
	}
	data[0] = 'y'
	again, _ := mfs.ReadFile("/f")
	if string(again) != "abc" {
		t.Errorf("stored data changed with the returned slice: %q", again)
	}
}
