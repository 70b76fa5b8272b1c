package ident

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestNewTaskID_RoundTrip(t *testing.T) {
	id := NewTaskID()
	if !strings.HasPrefix(string(id), TaskPrefix) {
		t.Fatalf("expected %q prefix, got %s", TaskPrefix, id)
	}

	parsed, err := ParseTaskID(string(id))
	if err != nil {
		t.Fatalf("unexpected error parsing generated id: %v", err)
	}
	if parsed != id {
		t.Fatalf("round trip mismatch: %s != %s", parsed, id)
	}
}

func TestNewTaskID_TimeSortable(t *testing.T) {
	a := NewTaskID()
	time.Sleep(2 * time.Millisecond)
	b := NewTaskID()
	if string(a) >= string(b) {
		t.Fatalf("expected lexicographic ordering to follow time: %s >= %s", a, b)
	}
}

func TestValidateULID_Length(t *testing.T) {
	if err := ValidateULID("too-short"); err == nil {
		t.Fatalf("expected error for short input")
	}
	if err := ValidateULID(strings.Repeat("0", 27)); err == nil {
		t.Fatalf("expected error for long input")
	}
}

func TestValidateULID_Alphabet(t *testing.T) {
	// 'U' is not in the Crockford alphabet.
	bad := "01HZZZZZZZZZZZZZZZZZZZZZZU"
	if err := ValidateULID(bad); err == nil {
		t.Fatalf("expected error for invalid alphabet")
	}
}

func TestValidateULID_TimestampWindow(t *testing.T) {
	old := ulid.MustNew(ulid.Timestamp(time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)), zeroReader{})
	if err := ValidateULID(old.String()); err == nil {
		t.Fatalf("expected error for pre-2020 timestamp")
	}

	future := ulid.MustNew(ulid.Timestamp(time.Now().Add(time.Hour)), zeroReader{})
	if err := ValidateULID(future.String()); err == nil {
		t.Fatalf("expected error for far-future timestamp")
	}

	current := ulid.MustNew(ulid.Timestamp(time.Now()), zeroReader{})
	if err := ValidateULID(current.String()); err != nil {
		t.Fatalf("unexpected error for current timestamp: %v", err)
	}
}

func TestTimestampOf(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	id := NewDecisionID()
	ts, err := TimestampOf(string(id))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Before(before.Add(-time.Second)) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("timestamp %s outside expected range", ts)
	}
}

func TestNewAgentID_Sanitization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Claude Reviewer", "claude-reviewer"},
		{"  GPT 4o  ", "gpt-4o"},
		{"under_score", "under_score"},
		{"Émile!", "mile"},
	}
	for _, tc := range cases {
		got, err := NewAgentID(tc.in)
		if err != nil {
			t.Fatalf("NewAgentID(%q): unexpected error: %v", tc.in, err)
		}
		if string(got) != tc.want {
			t.Fatalf("NewAgentID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewAgentID_Empty(t *testing.T) {
	for _, in := range []string{"", "!!!", "---", "日本語"} {
		if _, err := NewAgentID(in); err == nil {
			t.Fatalf("NewAgentID(%q): expected error", in)
		}
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
