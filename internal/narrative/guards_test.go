package narrative

import (
	"testing"
	"time"
)

func TestQuotaGuardCapEnforced(t *testing.T) {
	q := NewQuotaGuard(3)

	for i := 0; i < 3; i++ {
		if !q.TryReserve() {
			t.Fatalf("reservation %d refused below cap", i+1)
		}
	}

	// Once the cap is hit, every further attempt fails for the rest of
	// the process lifetime, regardless of key.
	for i := 0; i < 5; i++ {
		if q.TryReserve() {
			t.Fatal("reservation granted above cap")
		}
	}
	if q.Used() != 3 {
		t.Errorf("Used() = %d, want 3 (failed reservations must not count)", q.Used())
	}
	if !q.Exhausted() {
		t.Error("Exhausted() = false at cap")
	}
}

func TestQuotaGuardDefaultCap(t *testing.T) {
	q := NewQuotaGuard(0)
	if q.Cap() != defaultSessionCap {
		t.Errorf("Cap() = %d, want default %d", q.Cap(), defaultSessionCap)
	}
}

func TestCooldownWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewCooldownGuard(time.Minute)
	g.now = func() time.Time { return now }

	if blocked, _ := g.IsBlocked("Coimbatore"); blocked {
		t.Fatal("key with no prior run should not be blocked")
	}

	g.Arm("Coimbatore")

	blocked, remaining := g.IsBlocked("Coimbatore")
	if !blocked {
		t.Fatal("key should be blocked immediately after Arm")
	}
	if remaining != time.Minute {
		t.Errorf("remaining = %v, want 1m", remaining)
	}

	if blocked, _ := g.IsBlocked("Erode"); blocked {
		t.Error("cooldown must be per key")
	}

	// Simulated time passes the window: the entry stops blocking without
	// any cleanup.
	now = now.Add(time.Minute)
	if blocked, _ := g.IsBlocked("Coimbatore"); blocked {
		t.Error("key still blocked after the window elapsed")
	}
}

func TestCooldownRearmOverwrites(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewCooldownGuard(time.Minute)
	g.now = func() time.Time { return now }

	g.Arm("Salem")
	now = now.Add(45 * time.Second)
	g.Arm("Salem")

	_, remaining := g.IsBlocked("Salem")
	if remaining != time.Minute {
		t.Errorf("re-arm should restart the window, remaining = %v", remaining)
	}
}
