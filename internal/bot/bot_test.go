package bot

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestStatusRotationMutations(t *testing.T) {
	b := &Bot{statuses: []string{"one", "two"}}

	if got := b.addStatus("three"); got != "Added status: three" {
		t.Fatalf("unexpected response %q", got)
	}
	if len(b.statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(b.statuses))
	}

	if got := b.removeStatus("two"); got != "Removed status: two" {
		t.Fatalf("unexpected response %q", got)
	}
	if got := b.removeStatus("missing"); got != "No such status in the rotation." {
		t.Fatalf("unexpected response %q", got)
	}

	list := b.listStatuses()
	if !strings.Contains(list, "one") || !strings.Contains(list, "three") {
		t.Fatalf("unexpected list %q", list)
	}
}

func TestAddStatusRequiresText(t *testing.T) {
	b := &Bot{}
	if got := b.addStatus(""); got != "Status text is required." {
		t.Fatalf("unexpected response %q", got)
	}
	if len(b.statuses) != 0 {
		t.Fatalf("empty text must not be added")
	}
}

func TestRemoveStatusResetsIndex(t *testing.T) {
	b := &Bot{statuses: []string{"one", "two"}, statusIdx: 1}
	b.removeStatus("two")
	if b.statusIdx != 0 {
		t.Fatalf("index must reset when it falls off the rotation, got %d", b.statusIdx)
	}
}

func TestSweepIntervalFloor(t *testing.T) {
	if got := sweepInterval(0); got != 10*time.Minute {
		t.Fatalf("zero minutes must floor to 10m, got %s", got)
	}
	if got := sweepInterval(-5); got != 10*time.Minute {
		t.Fatalf("negative minutes must floor to 10m, got %s", got)
	}
	if got := sweepInterval(30); got != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", got)
	}
}

func TestClampFieldRuneBoundary(t *testing.T) {
	value := strings.Repeat("世", 400)
	got := clampField(value)
	if !utf8.ValidString(got) {
		t.Fatalf("clamp split a rune")
	}
	if len(got) > 1024 {
		t.Fatalf("clamp exceeds the embed field limit: %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
}

func TestChunkLinesSplitsOnBoundaries(t *testing.T) {
	lines := []string{strings.Repeat("a", 30), strings.Repeat("b", 30), strings.Repeat("c", 30)}
	chunks := chunkLines(lines, 65)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk) > 65 {
			t.Fatalf("chunk exceeds limit: %d", len(chunk))
		}
	}
}
