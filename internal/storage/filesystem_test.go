package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}

	loc, err := store.Put(context.Background(), "orders/abc.mp4", []byte("mp4"))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if loc != "http://localhost:8080/static/orders/abc.mp4" {
		t.Fatalf("locator = %q", loc)
	}
	data, err := os.ReadFile(filepath.Join(dir, "orders", "abc.mp4"))
	if err != nil || string(data) != "mp4" {
		t.Fatalf("stored file = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "orders", "abc.mp4.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "orders/a.mp4", want: "orders/a.mp4"},
		{key: "/orders//a.mp4", want: "orders/a.mp4"},
		{key: `orders\a.mp4`, want: "orders/a.mp4"},
		{key: "./orders/a.mp4", want: "orders/a.mp4"},
		{key: "../etc/passwd", wantErr: true},
		{key: "orders/../../x", wantErr: true},
		{key: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			got, err := sanitizeKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("sanitizeKey(%q) = %q, want error", tc.key, got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
			}
		})
	}
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore(" ", ""); err == nil {
		t.Fatalf("NewFileStore expected error for empty base path")
	}
}
