package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem(t *testing.T) {
	var fsys FileSystem = OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "plots", "pt_001")

	if err := fsys.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if !fsys.Exists(dir) {
		t.Fatal("directory should exist")
	}

	name := filepath.Join(dir, "a.json")
	if err := fsys.WriteFile(name, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	w, err := fsys.Create(filepath.Join(dir, "b.png"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write([]byte("png")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := fsys.ReadFile(filepath.Join(dir, "b.png"))
	if err != nil || string(data) != "png" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
	if fsys.Exists(filepath.Join(dir, "missing")) {
		t.Error("missing file should not exist")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("out/pt_001", 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, d := range []string{"out", "out/pt_001"} {
		if !m.Exists(d) {
			t.Errorf("%s should exist", d)
		}
	}

	data := []byte("hello")
	if err := m.WriteFile("out/pt_001/../a.txt", data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data[0] = 'j'

	got, err := m.ReadFile("out/a.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("ReadFile = %q, want stored copy", got)
	}
	got[0] = 'y'
	again, _ := m.ReadFile("out/a.txt")
	if string(again) != "hello" {
		t.Errorf("ReadFile returned shared buffer")
	}
}

func TestMemoryFileSystem_Create(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.MkdirAll("out", 0755); err != nil {
		t.Fatal(err)
	}

	w, err := m.Create("out/plot.png")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w.Write([]byte("part1 "))
	w.Write([]byte("part2"))

	if got, _ := m.ReadFile("out/plot.png"); len(got) != 0 {
		t.Errorf("contents visible before Close: %q", got)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got, _ := m.ReadFile("out/plot.png"); string(got) != "part1 part2" {
		t.Errorf("ReadFile = %q", got)
	}

	if _, err := w.Write([]byte("x")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
	if err := w.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close = %v, want ErrClosed", err)
	}
}

func TestMemoryFileSystem_MissingParent(t *testing.T) {
	m := NewMemoryFileSystem()

	if _, err := m.Create("nodir/a.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Create without parent = %v, want ErrNotExist", err)
	}
	if err := m.WriteFile("nodir/a.json", nil, 0644); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("WriteFile without parent = %v, want ErrNotExist", err)
	}
	if _, err := m.ReadFile("nodir/a.json"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile missing = %v, want ErrNotExist", err)
	}
	if err := m.WriteFile("top.json", nil, 0644); err != nil {
		t.Errorf("WriteFile in working dir: %v", err)
	}
}

func TestMemoryFileSystem_MkdirOverFile(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("report", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.MkdirAll("report/sub", 0755); !errors.Is(err, fs.ErrExist) {
		t.Errorf("MkdirAll over file = %v, want ErrExist", err)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	m := NewMemoryFileSystem()
	m.MkdirAll("out/b", 0755)
	m.MkdirAll("outside", 0755)
	m.WriteFile("out/z.json", nil, 0644)
	m.WriteFile("out/b/a.png", nil, 0644)
	m.WriteFile("outside/c.png", nil, 0644)

	got := m.Files("out")
	want := []string{"out/b/a.png", "out/z.json"}
	if len(got) != len(want) {
		t.Fatalf("Files = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Files[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
