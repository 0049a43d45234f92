package export

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/local/cardforge/internal/document"
)

func sampleDeck() document.Deck {
	return document.Deck{
		Name: "PDF - history",
		Cards: []document.FlashCard{
			{ID: "1", Question: "When was the treaty signed?", Answer: "In 1918."},
			{ID: "2", Question: "Who signed\tit?", Answer: "Twelve\nnations."},
		},
	}
}

func TestTSVExport(t *testing.T) {
	dir := t.TempDir()
	e := NewTSV(dir)

	path, err := e.Export(context.Background(), sampleDeck())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)

	if !strings.HasPrefix(content, "#separator:tab\n") {
		t.Errorf("missing import header: %q", content[:40])
	}
	if !strings.Contains(content, "#deck:PDF - history\n") {
		t.Error("missing deck header")
	}
	if !strings.Contains(content, "When was the treaty signed?\tIn 1918.\n") {
		t.Error("missing card row")
	}
	// Tabs and newlines inside fields must not break columns.
	if !strings.Contains(content, "Who signed it?\tTwelve<br>nations.\n") {
		t.Errorf("field sanitization failed: %q", content)
	}
}

func TestAPKGExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/package" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte("fake-apkg-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := NewAPKG(srv.URL, dir)

	path, err := c.Export(context.Background(), sampleDeck())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "fake-apkg-bytes" {
		t.Errorf("artifact = %q", data)
	}
	if !strings.HasSuffix(path, ".apkg") {
		t.Errorf("path = %q", path)
	}
}

func TestAPKGServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewAPKG(srv.URL, t.TempDir())
	if _, err := c.Export(context.Background(), sampleDeck()); err == nil {
		t.Fatal("want error on service failure")
	}
}
