package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManager_DestinationPath(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "plain", filename: "game.zip", want: filepath.Join(root, "game.zip")},
		{name: "nested", filename: "pack/part1.bin", want: filepath.Join(root, "pack", "part1.bin")},
		{name: "empty", filename: "", wantErr: true},
		{name: "traversal", filename: "../escape.bin", wantErr: true},
		{name: "root itself", filename: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.DestinationPath(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DestinationPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DestinationPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManager_PartialSizeAndAppend(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	path, _ := m.DestinationPath("sub/file.bin")

	size, err := m.PartialSize(path)
	if err != nil || size != 0 {
		t.Fatalf("PartialSize() on missing file = %d, %v; want 0, nil", size, err)
	}

	f, err := m.OpenAppend(path, false)
	if err != nil {
		t.Fatalf("OpenAppend() error = %v", err)
	}
	f.Write([]byte("hello"))
	f.Close()

	f, err = m.OpenAppend(path, false)
	if err != nil {
		t.Fatalf("OpenAppend() error = %v", err)
	}
	f.Write([]byte(" world"))
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	f.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "hello world" {
		t.Errorf("content = %q, want %q", data, "hello world")
	}
	if size, _ := m.PartialSize(path); size != 11 {
		t.Errorf("PartialSize() = %d, want 11", size)
	}

	f, err = m.OpenAppend(path, true)
	if err != nil {
		t.Fatalf("OpenAppend(truncate) error = %v", err)
	}
	f.Write([]byte("new"))
	f.Close()

	data, _ = os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content after truncate = %q, want %q", data, "new")
	}
}

func TestManager_GetDiskUsage(t *testing.T) {
	root := t.TempDir()
	m, _ := NewManager(root)

	usage, err := m.GetDiskUsage(root)
	if err != nil {
		t.Fatalf("GetDiskUsage() error = %v", err)
	}
	if usage.Total == 0 {
		t.Error("Total = 0, want > 0")
	}
	if usage.Free > usage.Total {
		t.Errorf("Free %d > Total %d", usage.Free, usage.Total)
	}

	if _, err := m.GetDiskUsage(filepath.Join(root, "does-not-exist")); err == nil {
		t.Error("GetDiskUsage() on missing dir should fail")
	}
}
