package narrative

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arivoli/neer/internal/district"
	"github.com/arivoli/neer/internal/gemini"
	"github.com/arivoli/neer/internal/prompt"
)

// fakeGen is a scripted upstream: failOn maps 1-based call numbers to
// forced failures, and block (when non-nil) gates each call.
type fakeGen struct {
	mu     sync.Mutex
	calls  int
	text   string
	failOn map[int]bool
	block  chan struct{}
}

func (g *fakeGen) Generate(ctx context.Context, p string) (string, error) {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failOn[g.calls] {
		return "", &gemini.TransportError{Status: 500, Err: errors.New("forced")}
	}
	if g.text != "" {
		return g.text, nil
	}
	return fmt.Sprintf("generated #%d", g.calls), nil
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func testService(gen Generator, opts Options) *Service {
	if opts.SectionDelay == 0 {
		opts.SectionDelay = time.Millisecond
	}
	return NewService(gen, NewCache(nil), opts)
}

func testDistrict() district.Record {
	return district.Record{
		"District":          "Coimbatore",
		"CASA_Pred_1yr":     5.23,
		"GW_Trend_m_per_yr": 0.12,
		"Tier":              float64(1),
	}
}

func drain(t *testing.T, ch <-chan DossierEvent) []DossierEvent {
	t.Helper()
	var events []DossierEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("dossier stream did not complete in time")
		}
	}
}

// No credential configured: the brief falls back to precomputed text with
// zero network calls.
func TestNarrativeWithoutCredential(t *testing.T) {
	s := testService(gemini.NewClient(""), Options{})

	res, err := s.Narrative(context.Background(), NarrativeRequest{
		Key:      "Coimbatore",
		Record:   testDistrict(),
		Fallback: "Precomputed brief.",
	})
	if err != nil {
		t.Fatalf("Narrative: %v", err)
	}
	if res.Source != SourcePrecomputed || res.Text != "Precomputed brief." {
		t.Errorf("got %+v, want precomputed fallback", res)
	}
}

// Live generation succeeds, and the identical follow-up call is served
// from cache without touching the upstream again.
func TestNarrativeLiveThenCached(t *testing.T) {
	gen := &fakeGen{text: "Depth is critical."}
	s := testService(gen, Options{})

	first, err := s.Narrative(context.Background(), NarrativeRequest{Key: "Coimbatore", Record: testDistrict()})
	if err != nil {
		t.Fatalf("first Narrative: %v", err)
	}
	if first.Source != SourceLive || first.Text != "Depth is critical." {
		t.Errorf("first = %+v", first)
	}

	second, err := s.Narrative(context.Background(), NarrativeRequest{Key: "Coimbatore", Record: testDistrict()})
	if err != nil {
		t.Fatalf("second Narrative: %v", err)
	}
	if second.Source != SourceCached || second.Text != "Depth is critical." {
		t.Errorf("second = %+v", second)
	}
	if gen.callCount() != 1 {
		t.Errorf("upstream called %d times, want 1", gen.callCount())
	}
}

func TestNarrativeEmptyKeyRejected(t *testing.T) {
	s := testService(&fakeGen{}, Options{})
	if _, err := s.Narrative(context.Background(), NarrativeRequest{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestDossierCompletesAllSections(t *testing.T) {
	gen := &fakeGen{}
	s := testService(gen, Options{})

	ch, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict(), Fallback: "fb"})
	if err != nil {
		t.Fatalf("Dossier: %v", err)
	}
	events := drain(t, ch)

	if len(events) != len(prompt.DossierSections)+1 {
		t.Fatalf("got %d events, want %d", len(events), len(prompt.DossierSections)+1)
	}
	for i, sec := range prompt.DossierSections {
		ev := events[i]
		if ev.Section != sec || ev.Completed != i+1 {
			t.Errorf("event %d = %+v, want section %s completed %d", i, ev, sec, i+1)
		}
	}
	final := events[len(events)-1]
	if !final.Done || final.FromCache || len(final.Sections) != len(prompt.DossierSections) {
		t.Errorf("final event = %+v", final)
	}
	if gen.callCount() != len(prompt.DossierSections) {
		t.Errorf("upstream called %d times, want %d", gen.callCount(), len(prompt.DossierSections))
	}
}

// A single failed section gets the fallback text; the run still reaches
// the terminal Done state with every other section live.
func TestDossierSectionFailureSubstitutesFallback(t *testing.T) {
	gen := &fakeGen{failOn: map[int]bool{2: true}}
	s := testService(gen, Options{})

	ch, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict(), Fallback: "precomputed text"})
	if err != nil {
		t.Fatalf("Dossier: %v", err)
	}
	events := drain(t, ch)
	final := events[len(events)-1]
	if !final.Done {
		t.Fatal("run did not complete")
	}

	failed := prompt.DossierSections[1]
	if final.Sections[failed] != "precomputed text" {
		t.Errorf("failed section text = %q, want fallback", final.Sections[failed])
	}
	for _, sec := range []prompt.Section{prompt.DossierSections[0], prompt.DossierSections[2], prompt.DossierSections[3]} {
		if final.Sections[sec] == "precomputed text" || final.Sections[sec] == "" {
			t.Errorf("section %s = %q, want live text", sec, final.Sections[sec])
		}
	}
}

// Upstream down entirely: every section carries the fallback and the run
// is still Completed, never Rejected.
func TestDossierAllFailuresStillCompletes(t *testing.T) {
	gen := &fakeGen{failOn: map[int]bool{1: true, 2: true, 3: true, 4: true}}
	s := testService(gen, Options{})

	ch, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict(), Fallback: "fb"})
	if err != nil {
		t.Fatalf("Dossier: %v", err)
	}
	events := drain(t, ch)
	final := events[len(events)-1]
	if !final.Done {
		t.Fatal("run did not complete")
	}
	for sec, text := range final.Sections {
		if text != "fb" {
			t.Errorf("section %s = %q, want fallback", sec, text)
		}
	}
}

// A completed dossier is served from cache on the next request, with no
// upstream calls and no additional quota consumed.
func TestDossierCacheHitSkipsQuota(t *testing.T) {
	gen := &fakeGen{}
	s := testService(gen, Options{})

	ch, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict()})
	if err != nil {
		t.Fatalf("first Dossier: %v", err)
	}
	drain(t, ch)

	usedAfterFirst := s.SessionsUsed()
	callsAfterFirst := gen.callCount()

	ch2, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict()})
	if err != nil {
		t.Fatalf("second Dossier: %v", err)
	}
	events := drain(t, ch2)

	if len(events) != 1 || !events[0].Done || !events[0].FromCache {
		t.Fatalf("cache hit events = %+v", events)
	}
	if len(events[0].Sections) != len(prompt.DossierSections) {
		t.Errorf("cached sections = %d, want %d", len(events[0].Sections), len(prompt.DossierSections))
	}
	if s.SessionsUsed() != usedAfterFirst {
		t.Error("cache hit consumed quota")
	}
	if gen.callCount() != callsAfterFirst {
		t.Error("cache hit reached the upstream")
	}
}

// Session cap 1: the first run for one district succeeds, the second run
// for a different district is rejected outright.
func TestDossierSessionCapRejection(t *testing.T) {
	gen := &fakeGen{}
	s := testService(gen, Options{SessionCap: 1})

	ch, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict()})
	if err != nil {
		t.Fatalf("first Dossier: %v", err)
	}
	drain(t, ch)

	_, err = s.Dossier(context.Background(), DossierRequest{Key: "Erode", Record: district.Record{"District": "Erode"}})
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonSessionCap {
		t.Fatalf("err = %v, want session cap rejection", err)
	}
}

func TestDossierCooldownRejection(t *testing.T) {
	s := testService(&fakeGen{}, Options{Cooldown: time.Hour})
	s.cooldown.Arm("Coimbatore")

	_, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict()})
	var rej *Rejection
	if !errors.As(err, &rej) || rej.Reason != ReasonCooldown {
		t.Fatalf("err = %v, want cooldown rejection", err)
	}
	if rej.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", rej.RetryAfter)
	}
}

// Switching the active district mid-run discards the superseded run's
// results: no further events, no cache write for the abandoned key.
func TestDossierStaleRunDiscarded(t *testing.T) {
	block := make(chan struct{})
	gen := &fakeGen{block: block}
	s := testService(gen, Options{SessionCap: 5})

	chA, err := s.Dossier(context.Background(), DossierRequest{Key: "Coimbatore", Record: testDistrict()})
	if err != nil {
		t.Fatalf("Dossier A: %v", err)
	}

	// First upstream call for A is now in flight. Switch to B.
	chB, err := s.Dossier(context.Background(), DossierRequest{Key: "Erode", Record: district.Record{"District": "Erode"}})
	if err != nil {
		t.Fatalf("Dossier B: %v", err)
	}
	close(block)

	eventsA := drain(t, chA)
	if len(eventsA) != 0 {
		t.Errorf("superseded run emitted %d events, want 0: %+v", len(eventsA), eventsA)
	}
	if _, ok := s.cache.Get("Coimbatore"); ok {
		t.Error("superseded run wrote to the cache")
	}

	eventsB := drain(t, chB)
	if len(eventsB) == 0 || !eventsB[len(eventsB)-1].Done {
		t.Errorf("active run did not complete: %+v", eventsB)
	}
	if _, ok := s.cache.Get("Erode"); !ok {
		t.Error("active run missing from cache")
	}
}

func TestDossierCancelledContextStopsRun(t *testing.T) {
	gen := &fakeGen{}
	s := testService(gen, Options{SectionDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := s.Dossier(ctx, DossierRequest{Key: "Coimbatore", Record: testDistrict()})
	if err != nil {
		t.Fatalf("Dossier: %v", err)
	}

	// First section completes, then the run parks in the inter-section
	// delay; cancelling must release it without a terminal event.
	timeout := time.After(5 * time.Second)
	select {
	case ev := <-ch:
		if ev.Completed != 1 {
			t.Fatalf("first event = %+v", ev)
		}
	case <-timeout:
		t.Fatal("no first section event")
	}
	cancel()

	events := drain(t, ch)
	for _, ev := range events {
		if ev.Done {
			t.Errorf("cancelled run emitted a terminal event: %+v", ev)
		}
	}
}
