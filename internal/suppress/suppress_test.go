package suppress

import "testing"

func TestSetDiscardConsumes(t *testing.T) {
	set := NewSet()
	set.Add("m1")
	if !set.Discard("m1") {
		t.Fatalf("expected m1 present")
	}
	if set.Discard("m1") {
		t.Fatalf("expected m1 consumed by first discard")
	}
}

func TestSetDiscardUnknown(t *testing.T) {
	set := NewSet()
	if set.Discard("never-added") {
		t.Fatalf("unknown id must not discard")
	}
}

func TestSetLen(t *testing.T) {
	set := NewSet()
	set.Add("m1")
	set.Add("m2")
	set.Add("m1")
	if set.Len() != 2 {
		t.Fatalf("expected 2 ids, got %d", set.Len())
	}
}
