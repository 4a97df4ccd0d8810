// Package narrative orchestrates on-demand generation of district policy
// narratives and four-section dossiers against a rate-limited upstream,
// with a persistent result cache, a per-process session quota, per-key
// cooldowns, and fallback to precomputed text on any upstream failure.
package narrative

import (
	"context"
	"fmt"
	"time"
)

// Generator sends one prompt upstream and returns the generated text.
// Both the direct provider client and the hosted relay satisfy it; the
// choice is made at construction, never inside the orchestration flow.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Where a returned text came from.
const (
	SourceLive        = "live"
	SourceCached      = "cached"
	SourcePrecomputed = "precomputed"
)

// Rejection reasons for dossier runs.
const (
	ReasonSessionCap = "session_cap_reached"
	ReasonCooldown   = "cooldown_active"
)

// Rejection refuses a dossier run before any upstream call is made.
// RetryAfter is set only for cooldown rejections; a session-cap rejection
// holds until process restart.
type Rejection struct {
	Reason     string
	RetryAfter time.Duration
}

func (r *Rejection) Error() string {
	if r.Reason == ReasonCooldown {
		return fmt.Sprintf("generation rejected: %s (retry in %s)", r.Reason, r.RetryAfter.Round(time.Second))
	}
	return "generation rejected: " + r.Reason
}
