package session

import (
	"errors"
	"testing"

	"studio/internal/domain"
)

func TestTrackerBeginAndRelease(t *testing.T) {
	tr := NewTracker()

	release, err := tr.Begin(OpRegenerate, 0)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if !tr.InFlight(OpRegenerate, 0) {
		t.Fatal("expected regeneration flag set")
	}
	if tr.InFlight(OpRegenerate, 1) {
		t.Fatal("flag leaked to another index")
	}

	release()
	if tr.InFlight(OpRegenerate, 0) {
		t.Fatal("flag still set after release")
	}
	if tr.AnyInFlight() {
		t.Fatal("AnyInFlight = true after release")
	}
}

func TestTrackerRejectsSameKindDoubleBegin(t *testing.T) {
	tr := NewTracker()

	release, err := tr.Begin(OpRegenerate, 2)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	defer release()

	if _, err := tr.Begin(OpRegenerate, 2); !errors.Is(err, domain.ErrOperationInFlight) {
		t.Fatalf("second Begin error = %v, want ErrOperationInFlight", err)
	}
	// A different index is unaffected.
	otherRelease, err := tr.Begin(OpRegenerate, 3)
	if err != nil {
		t.Fatalf("Begin for other index returned error: %v", err)
	}
	otherRelease()
}

func TestTrackerRejectsCrossKindBegin(t *testing.T) {
	tr := NewTracker()

	release, err := tr.Begin(OpRenderVideo, 1)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	defer release()

	if _, err := tr.Begin(OpRegenerate, 1); !errors.Is(err, domain.ErrOperationInFlight) {
		t.Fatalf("cross-kind Begin error = %v, want ErrOperationInFlight", err)
	}
}

func TestTrackerReleaseIsIdempotent(t *testing.T) {
	tr := NewTracker()

	release, err := tr.Begin(OpRenderVideo, 0)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	release()
	release()

	again, err := tr.Begin(OpRenderVideo, 0)
	if err != nil {
		t.Fatalf("Begin after release returned error: %v", err)
	}
	again()
}
