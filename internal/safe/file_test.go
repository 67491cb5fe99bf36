package safe

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenRegularFile(t *testing.T) {
	t.Run("opens regular file", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "firmware.elf")
		content := []byte("test content")

		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}

		f, err := OpenRegularFile(path, nil)
		if err != nil {
			t.Fatalf("OpenRegularFile failed: %v", err)
		}
		defer func() { _ = f.Close() }()

		got, err := io.ReadAll(f)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(content) {
			t.Errorf("got %q, want %q", got, content)
		}
	})

	t.Run("rejects symlink by default", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "firmware.elf")
		link := filepath.Join(tmpDir, "link.elf")

		if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(path, link); err != nil {
			t.Skip("symlinks not supported")
		}

		if _, err := OpenRegularFile(link, nil); err == nil {
			t.Error("expected error for symlink source")
		}
	})

	t.Run("allows symlink when configured", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "firmware.elf")
		link := filepath.Join(tmpDir, "link.elf")

		if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(path, link); err != nil {
			t.Skip("symlinks not supported")
		}

		f, err := OpenRegularFile(link, &OpenFileOptions{AllowSymlinks: true})
		if err != nil {
			t.Fatalf("OpenRegularFile failed: %v", err)
		}
		_ = f.Close()
	})

	t.Run("rejects directory", func(t *testing.T) {
		if _, err := OpenRegularFile(t.TempDir(), nil); err == nil {
			t.Error("expected error for directory")
		}
	})

	t.Run("rejects file exceeding max size", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "large.elf")

		if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := OpenRegularFile(path, &OpenFileOptions{MaxSize: 50}); err == nil {
			t.Error("expected error for oversized file")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := OpenRegularFile(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
