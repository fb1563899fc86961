package resource

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nuance-dev/convierto-sub000/internal/format"
)

func fixedProbe(available uint64) MemoryProbe {
	return func() (uint64, error) { return available, nil }
}

func TestBeginEndTask(t *testing.T) {
	p := NewPool(fixedProbe(8 << 30))

	p.BeginTask("a", format.CategoryImage)
	p.BeginTask("b", format.CategoryVideo)

	if got := p.ActiveCount(); got != 2 {
		t.Errorf("Expected 2 active tasks, got %d", got)
	}

	p.EndTask("a")
	p.EndTask("a") // idempotent
	p.EndTask("unknown")

	if got := p.ActiveCount(); got != 1 {
		t.Errorf("Expected 1 active task after ends, got %d", got)
	}
}

func TestEstimateRequired(t *testing.T) {
	tests := []struct {
		from, to format.Category
		want     uint64
	}{
		{format.CategoryImage, format.CategoryImage, 100 << 20},
		{format.CategoryAudio, format.CategoryAudio, 100 << 20},
		{format.CategoryImage, format.CategoryVideo, 350 << 20},
		{format.CategoryVideo, format.CategoryVideo, 600 << 20},
		{format.CategoryVideo, format.CategoryImage, 600 << 20},
		{format.CategoryAudio, format.CategoryVideo, 600 << 20},
		{format.CategoryDocument, format.CategoryImage, 250 << 20},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			if got := EstimateRequired(tt.from, tt.to); got != tt.want {
				t.Errorf("Expected %d MB, got %d MB", tt.want>>20, got>>20)
			}
		})
	}
}

func TestCheckAvailabilityBoundary(t *testing.T) {
	required := EstimateRequired(format.CategoryImage, format.CategoryImage)

	tests := []struct {
		name      string
		available uint64
		wantErr   bool
	}{
		{"WellBelowHalf", required * 10, false},
		{"ExactlyHalf", required * 2, false}, // R == A/2 must accept
		{"JustOverHalf", required*2 - 1, true},
		{"FarOverHalf", required, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(fixedProbe(tt.available))
			err := p.CheckAvailability("t", format.CategoryImage, format.CategoryImage)
			if tt.wantErr {
				var insufficient *InsufficientMemoryError
				if !errors.As(err, &insufficient) {
					t.Fatalf("Expected InsufficientMemoryError, got %v", err)
				}
				if insufficient.Required != required || insufficient.Available != tt.available {
					t.Errorf("Error carries required=%d available=%d, want %d/%d",
						insufficient.Required, insufficient.Available, required, tt.available)
				}
			} else if err != nil {
				t.Fatalf("Expected admission, got %v", err)
			}
		})
	}
}

func TestCheckAvailabilityProbeFailureAdmits(t *testing.T) {
	p := NewPool(func() (uint64, error) { return 0, errors.New("no meminfo") })
	if err := p.CheckAvailability("t", format.CategoryVideo, format.CategoryVideo); err != nil {
		t.Fatalf("Probe failure should admit, got %v", err)
	}
}

func TestFileActiveMarks(t *testing.T) {
	p := NewPool(fixedProbe(8 << 30))

	p.MarkFileActive("/cache/a.tmp")
	p.MarkFileActive("/cache/a.tmp")

	if !p.IsFileActive("/cache/a.tmp") {
		t.Error("Expected file to be active")
	}

	p.MarkFileInactive("/cache/a.tmp")
	if !p.IsFileActive("/cache/a.tmp") {
		t.Error("Expected file to remain active while one mark is held")
	}

	p.MarkFileInactive("/cache/a.tmp")
	if p.IsFileActive("/cache/a.tmp") {
		t.Error("Expected file to be inactive after final unmark")
	}

	if p.IsFileActive("/cache/unknown.tmp") {
		t.Error("Unknown path should not be active")
	}
}

func TestOnIdleFiresAtZero(t *testing.T) {
	p := NewPool(fixedProbe(8 << 30))

	fired := make(chan struct{}, 4)
	p.OnIdle(func() { fired <- struct{}{} })

	p.BeginTask("a", format.CategoryImage)
	p.BeginTask("b", format.CategoryAudio)
	p.EndTask("a")

	select {
	case <-fired:
		t.Fatal("Idle callback fired while a task was still active")
	case <-time.After(50 * time.Millisecond):
	}

	p.EndTask("b")

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Idle callback did not fire when the pool drained")
	}
}

func TestConcurrentBeginEnd(t *testing.T) {
	p := NewPool(fixedProbe(8 << 30))

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			p.BeginTask(id, format.CategoryImage)
			p.MarkFileActive("/cache/shared.tmp")
			p.MarkFileInactive("/cache/shared.tmp")
			p.EndTask(id)
		}(i)
	}
	wg.Wait()

	if got := p.ActiveCount(); got != 0 {
		t.Errorf("Expected 0 active tasks after concurrent churn, got %d", got)
	}
	if p.IsFileActive("/cache/shared.tmp") {
		t.Error("Expected no active marks after concurrent churn")
	}
}
