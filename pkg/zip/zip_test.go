package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveRoundTrip(t *testing.T) {
	entries := []Entry{
		{Name: "a.txt", Data: []byte("hello")},
		{Name: "dir/b.bin", Data: []byte{0, 1, 2, 3}},
	}

	data, err := Archive(entries)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a zip: %v", err)
	}
	if len(zr.File) != len(entries) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(entries))
	}
	for i, e := range entries {
		f := zr.File[i]
		if f.Name != e.Name {
			t.Fatalf("entry %d name = %q, want %q", i, f.Name, e.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		if !bytes.Equal(got, e.Data) {
			t.Fatalf("entry %s data = %v, want %v", f.Name, got, e.Data)
		}
	}
}

func TestArchiveEmpty(t *testing.T) {
	data, err := Archive(nil)
	if err != nil {
		t.Fatalf("Archive(nil) error = %v", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("empty archive unreadable: %v", err)
	}
}
