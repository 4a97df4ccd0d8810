package advisory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arivoli/neer/internal/storage"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngestText(t *testing.T) {
	store := testStore(t)
	ing := NewIngestor(store, nil)

	a, err := ing.IngestText("Drip subsidy circular", "Maize", "  Subsidy window extended.  ", "cli")
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if a.ID == "" || a.Content != "Subsidy window extended." {
		t.Errorf("advisory = %+v", a)
	}

	if _, err := ing.IngestText("empty", "Maize", "   ", "cli"); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestIngestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><style>p{color:red}</style></head>
			<body><h1>PMKSY notice</h1><p>Applications open until March.</p>
			<script>alert("hi")</script></body></html>`))
	}))
	defer srv.Close()

	store := testStore(t)
	ing := NewIngestor(store, srv.Client())

	a, err := ing.IngestURL(context.Background(), srv.URL, "", "Bajra")
	if err != nil {
		t.Fatalf("IngestURL: %v", err)
	}
	if a.Title != srv.URL {
		t.Errorf("title should default to the URL, got %q", a.Title)
	}
	if !strings.Contains(a.Content, "PMKSY notice") || !strings.Contains(a.Content, "Applications open until March.") {
		t.Errorf("visible text not extracted: %q", a.Content)
	}
	if strings.Contains(a.Content, "alert") || strings.Contains(a.Content, "color:red") {
		t.Errorf("script/style content leaked: %q", a.Content)
	}
}

func TestIngestURLNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ing := NewIngestor(testStore(t), srv.Client())
	if _, err := ing.IngestURL(context.Background(), srv.URL, "t", "c"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestExtractsForCrop(t *testing.T) {
	store := testStore(t)
	ing := NewIngestor(store, nil)

	long := strings.Repeat("word ", 200)
	if _, err := ing.IngestText("Long circular", "Maize", long, "cli"); err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if _, err := ing.IngestText("Other crop", "Bajra", "irrelevant", "cli"); err != nil {
		t.Fatalf("IngestText: %v", err)
	}

	extracts := ExtractsForCrop(store, "Maize", 5)
	if len(extracts) != 1 {
		t.Fatalf("got %d extracts, want 1", len(extracts))
	}
	if !strings.HasPrefix(extracts[0], "Long circular: ") {
		t.Errorf("extract should lead with the title: %q", extracts[0])
	}
	if len(extracts[0]) > extractLen+len("Long circular: ")+3 {
		t.Errorf("extract too long: %d chars", len(extracts[0]))
	}

	if got := ExtractsForCrop(store, "", 5); got != nil {
		t.Errorf("empty crop should yield no extracts, got %v", got)
	}
	if got := ExtractsForCrop(nil, "Maize", 5); got != nil {
		t.Errorf("nil store should yield no extracts, got %v", got)
	}
}
