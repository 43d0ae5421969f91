package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	chunk := make([]byte, chunkSize)
	for i := range chunk {
		chunk[i] = byte(i % 251)
	}
	remaining := size
	for remaining > 0 {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}

// WriteFrameDir populates dir with count synthetic frame files named the way
// the extraction stage names them, and returns their paths in index order.
func WriteFrameDir(t testing.TB, dir string, count int) []string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir frame dir: %v", err)
	}
	paths := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i))
		payload := []byte(fmt.Sprintf("frame-%d", i))
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			t.Fatalf("write frame %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}
