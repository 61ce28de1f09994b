package utils

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const pricesCSV = "ticker,date,close,adj_close\nXYZ,2024-06-28,50,50\n"

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestResolveInputLocal(t *testing.T) {
	path, cleanup, err := ResolveInput(context.Background(), "/data/prices.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	if path != "/data/prices.csv" {
		t.Errorf("path = %q", path)
	}

	path, cleanup, err = ResolveInput(context.Background(), "")
	if err != nil || path != "" {
		t.Errorf("empty source: %q, %v", path, err)
	}
	cleanup()
}

func TestResolveInputRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feeds/prices.csv" {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "prices.csv", time.Time{}, strings.NewReader(pricesCSV))
	}))
	defer srv.Close()

	path, cleanup, err := ResolveInput(context.Background(), srv.URL+"/feeds/prices.csv")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "prices.csv" {
		t.Errorf("path = %q", path)
	}
	if got := readFile(t, path); got != pricesCSV {
		t.Errorf("content = %q", got)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("downloaded file not removed: %v", err)
	}

	if _, _, err := ResolveInput(context.Background(), srv.URL+"/missing.csv"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestResolveInputZip(t *testing.T) {
	dir := t.TempDir()

	one := filepath.Join(dir, "one.zip")
	writeZip(t, one, map[string]string{"export/prices.csv": pricesCSV, "README.txt": "x"})
	path, cleanup, err := ResolveInput(context.Background(), one)
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()
	if got := readFile(t, path); got != pricesCSV {
		t.Errorf("content = %q", got)
	}

	two := filepath.Join(dir, "two.zip")
	writeZip(t, two, map[string]string{"a.csv": pricesCSV, "b.csv": pricesCSV})
	if _, _, err := ResolveInput(context.Background(), two); err == nil {
		t.Error("expected error for archive with two csv files")
	}

	slip := filepath.Join(dir, "slip.zip")
	writeZip(t, slip, map[string]string{"../evil.csv": pricesCSV})
	if _, err := UnzipFile(slip, filepath.Join(dir, "out")); err == nil {
		t.Error("expected error for path outside target")
	}
}

func TestIsRemote(t *testing.T) {
	testCases := map[string]bool{
		"https://example.com/prices.csv": true,
		"http://localhost:8080/x.zip":    true,
		"ftp://example.com/x.csv":        false,
		"/tmp/prices.csv":                false,
		"prices.csv":                     false,
	}
	for src, want := range testCases {
		if got := IsRemote(src); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", src, got, want)
		}
	}
}
