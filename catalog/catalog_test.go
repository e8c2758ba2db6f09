package catalog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"LanFM/catalog"
)

const sampleCatalog = `[
  {"id": "s1", "title": "First", "artist": "A", "duration": 12, "url": "/media/first.mp3"},
  {"id": "s2", "title": "Second", "artist": "B", "album": "LP", "duration": 200, "url": "/media/second.mp3"}
]`

func writeCatalog(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "songs.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), sampleCatalog)

	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	song, ok := c.Get("s2")
	if !ok {
		t.Fatal("Get(s2) not found")
	}
	if song.Title != "Second" || song.Album != "LP" {
		t.Errorf("Get(s2) = %+v", song)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) reported found")
	}
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	c, err := catalog.Load(filepath.Join(t.TempDir(), "songs.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), `[{"id": "s1"`)

	if _, err := catalog.Load(path); err == nil {
		t.Error("expected error loading corrupt catalog, got nil")
	}
}

func TestWatchReloadsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, sampleCatalog)

	c, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer c.Close()

	writeCatalog(t, dir, `[{"id": "s9", "title": "Only", "artist": "C", "duration": 5, "url": "/media/only.mp3"}]`)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Get("s9"); ok && c.Len() == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("catalog did not reload; Len = %d", c.Len())
}
