package core

import "github.com/maestro-ai/maestro/internal/ident"

// MaxParsingNotes bounds the notes a directive parse may accumulate.
const MaxParsingNotes = 25

// Signal pairs a boolean cue with the parser's confidence in it.
type Signal struct {
	Active     bool
	Confidence float64 // [0,1]
}

// UserDirective is the structured intent extracted from free text.
type UserDirective struct {
	OriginalText     string
	ForceConsensus   Signal
	PreventConsensus Signal
	IsEmergency      Signal
	AssignToAgent    ident.AgentID   // primary assignment, empty when unset
	AssignedAgents   []ident.AgentID // distinct mentions, in order of appearance
	Notes            string
	ParsingNotes     []string
}

// AddParsingNote appends a note, dropping it silently once the cap is hit.
func (d *UserDirective) AddParsingNote(note string) {
	if len(d.ParsingNotes) < MaxParsingNotes {
		d.ParsingNotes = append(d.ParsingNotes, note)
	}
}

// Classification is the task classifier's verdict.
type Classification struct {
	Complexity       int // 1..10
	Risk             int // 1..10
	CriticalKeywords []string
	Confidence       float64 // [0,1]
}

// IsCritical reports whether any critical keyword was detected.
func (c Classification) IsCritical() bool { return len(c.CriticalKeywords) > 0 }
