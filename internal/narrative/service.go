package narrative

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arivoli/neer/internal/district"
	"github.com/arivoli/neer/internal/prompt"
)

// Inter-section pacing keeps a full dossier run under the upstream's
// requests-per-minute ceiling on the free tier.
const defaultSectionDelay = 4500 * time.Millisecond

// briefSection is the cache section name for the single district brief.
const briefSection = "brief"

const noNarrativeText = "No narrative available."

// NarrativeRequest asks for the single policy brief for one district.
type NarrativeRequest struct {
	Key      string
	Record   district.Record
	Fallback string // precomputed narrative, used on any upstream failure
}

// Result is a generated (or recalled, or substituted) narrative.
type Result struct {
	Text   string
	Source string
}

// DossierRequest asks for a full multi-section dossier for one district.
// Aux carries the section templates' auxiliary context; the caller
// assembles it from the dataset, the policy tables, and any ingested
// advisories.
type DossierRequest struct {
	Key      string
	Record   district.Record
	Aux      prompt.Context
	Fallback string
}

// DossierEvent is one update on a dossier stream: a completed section, or
// the terminal Done event carrying the full section map.
type DossierEvent struct {
	Section   prompt.Section
	Label     string
	Text      string
	Completed int

	Done      bool
	FromCache bool
	Sections  map[prompt.Section]string
}

// Service runs narrative and dossier generation. Sections within a run
// execute strictly sequentially with a fixed delay between upstream
// calls; the quota, cooldown, and cache are shared across runs.
type Service struct {
	gen      Generator
	cache    *Cache
	quota    *QuotaGuard
	cooldown *CooldownGuard
	delay    time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	active string
}

// Options tunes the Service. Zero values select the defaults.
type Options struct {
	SectionDelay time.Duration
	SessionCap   int
	Cooldown     time.Duration
}

// NewService creates a Service over the given upstream and cache.
func NewService(gen Generator, cache *Cache, opts Options) *Service {
	delay := opts.SectionDelay
	if delay <= 0 {
		delay = defaultSectionDelay
	}
	return &Service{
		gen:      gen,
		cache:    cache,
		quota:    NewQuotaGuard(opts.SessionCap),
		cooldown: NewCooldownGuard(opts.Cooldown),
		delay:    delay,
		logger:   slog.Default(),
	}
}

// SessionsUsed returns how many generation sessions have started.
func (s *Service) SessionsUsed() int { return s.quota.Used() }

// SessionCap returns the configured per-process session cap.
func (s *Service) SessionCap() int { return s.quota.Cap() }

func (s *Service) setActive(key string) {
	s.mu.Lock()
	s.active = key
	s.mu.Unlock()
}

func (s *Service) isActive(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == key
}

// briefKey namespaces single-brief cache entries away from dossier
// entries so one never clobbers the other's rows for the same district.
func briefKey(key string) string { return key + "#brief" }

// Narrative returns the policy brief for one district: cached if
// available, freshly generated if the upstream cooperates, and the
// precomputed fallback otherwise. Upstream failures are never surfaced
// as errors; only a structurally empty request is.
func (s *Service) Narrative(ctx context.Context, req NarrativeRequest) (Result, error) {
	if req.Key == "" {
		return Result{}, errors.New("narrative request has no key")
	}

	if entries, ok := s.cache.Get(briefKey(req.Key)); ok {
		for _, e := range entries {
			if e.Section == briefSection {
				return Result{Text: e.Text, Source: SourceCached}, nil
			}
		}
	}

	s.setActive(req.Key)

	text, err := s.gen.Generate(ctx, prompt.Brief(req.Record))
	source := SourceLive
	if err != nil {
		s.logger.Debug("narrative generation failed, using precomputed text",
			"key", req.Key, "error", err)
		text = req.Fallback
		if text == "" {
			text = noNarrativeText
		}
		source = SourcePrecomputed
	}

	// The caller may have moved to another district while the call was in
	// flight; a superseded result must not touch shared state.
	if s.isActive(req.Key) {
		s.cache.Put(briefKey(req.Key), []Entry{{
			Section:   briefSection,
			Text:      text,
			Source:    source,
			CreatedAt: time.Now().UTC(),
		}})
	}

	return Result{Text: text, Source: source}, nil
}

// Dossier starts a full dossier run for one district and returns the
// event stream. Rejections (session cap, cooldown) are returned
// immediately as a *Rejection error with no upstream traffic and no
// quota consumed. A cache hit returns a stream that completes at once.
//
// The stream is buffered for the whole run, so an abandoned reader never
// wedges the producer; results for a superseded key are discarded
// silently at each completion point.
func (s *Service) Dossier(ctx context.Context, req DossierRequest) (<-chan DossierEvent, error) {
	if req.Key == "" {
		return nil, errors.New("dossier request has no key")
	}

	if entries, ok := s.cache.Get(req.Key); ok {
		ch := make(chan DossierEvent, 1)
		sections := make(map[prompt.Section]string, len(entries))
		for _, e := range entries {
			sections[prompt.Section(e.Section)] = e.Text
		}
		ch <- DossierEvent{Done: true, FromCache: true, Sections: sections, Completed: len(sections)}
		close(ch)
		return ch, nil
	}

	if s.quota.Exhausted() {
		return nil, &Rejection{Reason: ReasonSessionCap}
	}
	if blocked, remaining := s.cooldown.IsBlocked(req.Key); blocked {
		return nil, &Rejection{Reason: ReasonCooldown, RetryAfter: remaining}
	}
	if !s.quota.TryReserve() {
		return nil, &Rejection{Reason: ReasonSessionCap}
	}

	s.setActive(req.Key)

	ch := make(chan DossierEvent, len(prompt.DossierSections)+1)
	go s.runDossier(ctx, req, ch)
	return ch, nil
}

func (s *Service) runDossier(ctx context.Context, req DossierRequest, ch chan<- DossierEvent) {
	defer close(ch)

	sections := make(map[prompt.Section]string, len(prompt.DossierSections))
	entries := make([]Entry, 0, len(prompt.DossierSections))

	for i, sec := range prompt.DossierSections {
		if !s.isActive(req.Key) {
			return
		}

		text, source := s.generateSection(ctx, sec, req)

		// Stale-response discard: the caller switched districts while the
		// upstream call was in flight.
		if !s.isActive(req.Key) {
			return
		}

		sections[sec] = text
		entries = append(entries, Entry{
			Section:   string(sec),
			Text:      text,
			Source:    source,
			CreatedAt: time.Now().UTC(),
		})
		ch <- DossierEvent{
			Section:   sec,
			Label:     sec.Label(),
			Text:      text,
			Completed: i + 1,
		}

		if i < len(prompt.DossierSections)-1 {
			if err := sleepCtx(ctx, s.delay); err != nil {
				return
			}
		}
	}

	if !s.isActive(req.Key) {
		return
	}

	s.cache.Put(req.Key, entries)
	s.cooldown.Arm(req.Key)

	ch <- DossierEvent{Done: true, Sections: sections, Completed: len(sections)}
}

// generateSection builds and sends one section prompt. Any failure
// (credential, transport, envelope, even a bad template) substitutes the
// precomputed fallback so no section is ever left empty.
func (s *Service) generateSection(ctx context.Context, sec prompt.Section, req DossierRequest) (string, string) {
	p, err := prompt.Build(sec, req.Record, req.Aux)
	if err == nil {
		var text string
		text, err = s.gen.Generate(ctx, p)
		if err == nil {
			return text, SourceLive
		}
	}

	s.logger.Debug("dossier section failed, using precomputed text",
		"key", req.Key, "section", sec, "error", err)
	text := req.Fallback
	if text == "" {
		text = noNarrativeText
	}
	return text, SourcePrecomputed
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
