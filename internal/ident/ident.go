// Package ident generates and validates the typed identifiers used across
// the engine. Identifiers are ULIDs: 48 bits of millisecond timestamp plus
// 80 bits of cryptographic randomness, Crockford base32 encoded to 26
// characters. Typed wrappers add a stable prefix per entity kind.
package ident

import (
	crand "crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for typed identifiers.
const (
	TaskPrefix     = "task-"
	ProposalPrefix = "proposal-"
	DecisionPrefix = "decision-"
)

// Validation window bounds. Encoded timestamps outside the window are
// rejected: anything before the project epoch is garbage, anything more
// than a minute ahead of the wall clock is a clock fault.
var (
	minTimestamp = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	maxSkew      = 60 * time.Second
)

// TaskID identifies a task.
type TaskID string

// ProposalID identifies a proposal.
type ProposalID string

// DecisionID identifies a decision.
type DecisionID string

// AgentID identifies an agent. Agent IDs are sanitized display names, not
// ULIDs.
type AgentID string

// NewTaskID returns a fresh task identifier.
func NewTaskID() TaskID { return TaskID(TaskPrefix + newULID()) }

// NewProposalID returns a fresh proposal identifier.
func NewProposalID() ProposalID { return ProposalID(ProposalPrefix + newULID()) }

// NewDecisionID returns a fresh decision identifier.
func NewDecisionID() DecisionID { return DecisionID(DecisionPrefix + newULID()) }

func newULID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), crand.Reader)
	if err != nil {
		// crypto/rand never fails on supported platforms; if it does the
		// process cannot mint identifiers at all.
		panic(fmt.Sprintf("ident: entropy source failed: %v", err))
	}
	return id.String()
}

// ParseTaskID validates s as a prefixed task identifier.
func ParseTaskID(s string) (TaskID, error) {
	if err := validatePrefixed(s, TaskPrefix); err != nil {
		return "", err
	}
	return TaskID(s), nil
}

// ParseProposalID validates s as a prefixed proposal identifier.
func ParseProposalID(s string) (ProposalID, error) {
	if err := validatePrefixed(s, ProposalPrefix); err != nil {
		return "", err
	}
	return ProposalID(s), nil
}

// ParseDecisionID validates s as a prefixed decision identifier.
func ParseDecisionID(s string) (DecisionID, error) {
	if err := validatePrefixed(s, DecisionPrefix); err != nil {
		return "", err
	}
	return DecisionID(s), nil
}

func validatePrefixed(s, prefix string) error {
	if !strings.HasPrefix(s, prefix) {
		return fmt.Errorf("invalid identifier %q: missing %q prefix", s, prefix)
	}
	return ValidateULID(strings.TrimPrefix(s, prefix))
}

// ValidateULID accepts s iff it is a 26-character Crockford base32 string
// whose decoded timestamp lies within the validation window.
func ValidateULID(s string) error {
	if len(s) != 26 {
		return fmt.Errorf("invalid identifier %q: length %d, want 26", s, len(s))
	}
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	ts := ulid.Time(id.Time())
	if ts.Before(minTimestamp) {
		return fmt.Errorf("invalid identifier %q: timestamp %s predates %s", s, ts.Format(time.RFC3339), minTimestamp.Format(time.RFC3339))
	}
	if ts.After(time.Now().Add(maxSkew)) {
		return fmt.Errorf("invalid identifier %q: timestamp %s is in the future", s, ts.Format(time.RFC3339))
	}
	return nil
}

// TimestampOf extracts the creation time encoded in a prefixed identifier.
func TimestampOf(s string) (time.Time, error) {
	if i := strings.LastIndex(s, "-"); i >= 0 {
		s = s[i+1:]
	}
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	return ulid.Time(id.Time()), nil
}

// NewAgentID derives an agent identifier from a display name: lowercase,
// spaces to dashes, everything outside [a-z0-9_-] stripped. At least one
// alphanumeric must survive.
func NewAgentID(displayName string) (AgentID, error) {
	var b strings.Builder
	hasAlnum := false
	for _, r := range strings.ToLower(strings.TrimSpace(displayName)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			hasAlnum = true
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	if !hasAlnum {
		return "", fmt.Errorf("invalid identifier: display name %q sanitizes to nothing", displayName)
	}
	return AgentID(b.String()), nil
}
