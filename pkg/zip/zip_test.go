package zip

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestArchive(t *testing.T) {
	data, err := Archive([]Entry{
		{Name: "gen-1.webp", Data: []byte("one")},
		{Name: "gen-2.png", Data: []byte("two")},
		{Name: "empty.png"},
		{Name: "gen-1.webp", Data: []byte("dup")},
		{Name: "../escape.png", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"gen-1.webp", "gen-2.png", "gen-1-1.webp", "escape.png"} {
		if !names[want] {
			t.Fatalf("missing entry %q in %v", want, names)
		}
	}
	if names["empty.png"] {
		t.Fatalf("empty entries must be skipped")
	}
	if len(zr.File) != 4 {
		t.Fatalf("entries = %d, want 4", len(zr.File))
	}
}
