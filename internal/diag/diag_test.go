package diag

import (
	"errors"
	"testing"
)

func TestRecordAndEntriesOrder(t *testing.T) {
	l := New(8)
	l.Record("a", "first")
	l.Record("b", "second")
	got := l.Entries()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries got %d", len(got))
	}
	if got[0].Message != "first" || got[1].Message != "second" {
		t.Fatalf("entries out of order: %+v", got)
	}
	if got[0].Time.IsZero() {
		t.Fatal("entry missing timestamp")
	}
}

func TestBoundedEvictsOldest(t *testing.T) {
	l := New(3)
	for _, m := range []string{"1", "2", "3", "4", "5"} {
		l.Record("k", m)
	}
	got := l.Entries()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries got %d", len(got))
	}
	if got[0].Message != "3" || got[2].Message != "5" {
		t.Fatalf("unexpected window: %+v", got)
	}
}

func TestErrIgnoresNil(t *testing.T) {
	l := New(4)
	l.Err("k", nil)
	if l.Len() != 0 {
		t.Fatalf("nil error must not be recorded, have %d", l.Len())
	}
	l.Err("k", errors.New("boom"))
	if l.Len() != 1 {
		t.Fatalf("expected 1 entry got %d", l.Len())
	}
}
