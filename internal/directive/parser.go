// Package directive turns free-text user requests into structured intent:
// consensus forcing/prevention signals with confidences, emergency cues,
// and agent assignments resolved against the registry.
package directive

import (
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/ident"
	"github.com/maestro-ai/maestro/internal/logging"
	"github.com/maestro-ai/maestro/internal/registry"
)

// negationWindow is how many tokens after a negation cue stay flipped.
const negationWindow = 6

// tieMargin: force and prevent confidences closer than this (and both above
// tieFloor) neutralize each other.
const (
	tieFloor  = 0.5
	tieMargin = 0.1
)

var negationCues = []string{"don't", "dont", "not", "no", "without", "skip"}

type phrase struct {
	tokens []string
	weight float64
}

var forcePhrases = []phrase{
	{[]string{"need", "consensus"}, 0.6},
	{[]string{"needs", "consensus"}, 0.6},
	{[]string{"we", "need", "consensus"}, 0.6},
	{[]string{"require", "consensus"}, 0.6},
	{[]string{"requires", "consensus"}, 0.6},
	{[]string{"want", "consensus"}, 0.5},
	{[]string{"get", "consensus"}, 0.5},
	{[]string{"reach", "consensus"}, 0.5},
	{[]string{"consensus"}, 0.35},
	{[]string{"second", "opinion"}, 0.45},
	{[]string{"multiple", "opinions"}, 0.45},
	{[]string{"cross", "check"}, 0.35},
	{[]string{"everyone's", "input"}, 0.5},
}

var preventPhrases = []phrase{
	{[]string{"solo"}, 0.5},
	{[]string{"alone"}, 0.35},
	{[]string{"single", "agent"}, 0.5},
	{[]string{"just", "implement"}, 0.5},
	{[]string{"just", "do", "it"}, 0.45},
	{[]string{"just", "ship"}, 0.45},
	{[]string{"by", "yourself"}, 0.4},
	{[]string{"one", "agent"}, 0.4},
}

var emergencyPhrases = []phrase{
	{[]string{"emergency"}, 0.7},
	{[]string{"urgent"}, 0.6},
	{[]string{"asap"}, 0.5},
	{[]string{"sev0"}, 0.8},
	{[]string{"sev1"}, 0.6},
	{[]string{"production", "down"}, 0.8},
	{[]string{"production", "outage"}, 0.8},
	{[]string{"prod", "is", "down"}, 0.8},
	{[]string{"site", "is", "down"}, 0.7},
	{[]string{"outage"}, 0.55},
	{[]string{"hotfix"}, 0.5},
}

// exclusionPhrases are token sequences whose inner tokens must never be
// treated as agent mentions. "user input" is a phrase, not the agent "user".
var exclusionPhrases = [][]string{
	{"user", "input"},
	{"user", "interface"},
	{"end", "user"},
	{"test", "user"},
}

// Parser resolves directives against an agent registry.
type Parser struct {
	registry *registry.Registry
	logger   *logging.Logger
}

// NewParser creates a parser.
func NewParser(reg *registry.Registry, logger *logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Parser{registry: reg, logger: logger.WithComponent("directive")}
}

// Parse extracts structured intent from text. Parsing never fails; weak or
// contradictory signals degrade to neutral with notes.
func (p *Parser) Parse(text string) core.UserDirective {
	d := core.UserDirective{OriginalText: text}

	tokens := tokenize(strings.ToLower(text))
	negated := negationMask(tokens)

	var force, prevent, emergency float64

	apply := func(fam []phrase, pos *float64, flip *float64) {
		for _, ph := range fam {
			for _, start := range findPhrase(tokens, ph.tokens) {
				if negated[start] && flip != nil {
					*flip += ph.weight
					d.AddParsingNote(fmt.Sprintf("negated %q flips polarity", strings.Join(ph.tokens, " ")))
				} else if negated[start] && flip == nil {
					d.AddParsingNote(fmt.Sprintf("negated %q ignored", strings.Join(ph.tokens, " ")))
				} else {
					*pos += ph.weight
					d.AddParsingNote(fmt.Sprintf("matched %q", strings.Join(ph.tokens, " ")))
				}
			}
		}
	}

	apply(forcePhrases, &force, &prevent)
	apply(preventPhrases, &prevent, &force)
	apply(emergencyPhrases, &emergency, nil)

	// Agent mentions.
	mentions := p.resolveMentions(tokens, &d)
	switch len(mentions) {
	case 0:
	case 1:
		d.AssignToAgent = mentions[0]
		d.AddParsingNote(fmt.Sprintf("assigned to %s", mentions[0]))
	default:
		d.AssignedAgents = mentions
		d.AssignToAgent = mentions[0]
		force += 0.5
		d.AddParsingNote(fmt.Sprintf("%d distinct agents mentioned, raising consensus", len(mentions)))
	}

	// "get X's input" is a forcing construction when X resolved.
	if len(mentions) > 0 && hasInputRequest(tokens) {
		force += 0.5
		d.AddParsingNote("input-request construction raises consensus")
	}

	// Emergencies bias toward solo unless a forcing cue is present.
	forcingCue := force > 0
	if emergency > 0 && !forcingCue {
		prevent += 0.4
		d.AddParsingNote("emergency without forcing cue biases solo")
	}

	force = clamp01(force)
	prevent = clamp01(prevent)
	emergency = clamp01(emergency)

	// Tie resolution.
	switch {
	case emergency > 0 && forcingCue:
		d.AddParsingNote("emergency with forcing cue: keeping force, clearing prevent")
		prevent = 0
	case force > tieFloor && prevent > tieFloor && abs(force-prevent) < tieMargin:
		d.AddParsingNote("force and prevent tied, clearing both")
		force = 0
		prevent = 0
	}

	d.ForceConsensus = core.Signal{Active: force > 0, Confidence: force}
	d.PreventConsensus = core.Signal{Active: prevent > 0, Confidence: prevent}
	d.IsEmergency = core.Signal{Active: emergency > 0, Confidence: emergency}
	return d
}

// tokenize splits on whitespace and strips surrounding punctuation, keeping
// a leading @ so explicit mentions survive.
func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		at := strings.HasPrefix(f, "@")
		f = strings.Trim(f, ".,;:!?()[]{}\"'`")
		f = strings.TrimSuffix(f, "'s")
		f = strings.TrimSuffix(f, "’s")
		if f == "" {
			continue
		}
		if at && !strings.HasPrefix(f, "@") {
			f = "@" + f
		}
		out = append(out, f)
	}
	return out
}

// negationMask marks every token position inside a negation window.
func negationMask(tokens []string) []bool {
	mask := make([]bool, len(tokens))
	for i, tok := range tokens {
		for _, cue := range negationCues {
			if tok == cue || (cue == "not" && tok == "do" && i+1 < len(tokens) && tokens[i+1] == "not") {
				for j := i + 1; j <= i+negationWindow && j < len(tokens); j++ {
					mask[j] = true
				}
			}
		}
	}
	return mask
}

// findPhrase returns the start indices of every occurrence of want in tokens.
func findPhrase(tokens, want []string) []int {
	var starts []int
	if len(want) == 0 || len(tokens) < len(want) {
		return nil
	}
	for i := 0; i+len(want) <= len(tokens); i++ {
		match := true
		for j, w := range want {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			starts = append(starts, i)
		}
	}
	return starts
}

func hasInputRequest(tokens []string) bool {
	for i, tok := range tokens {
		if tok != "get" && tok != "want" && tok != "need" {
			continue
		}
		for j := i + 1; j < len(tokens) && j <= i+4; j++ {
			if tokens[j] == "input" || tokens[j] == "opinion" || tokens[j] == "take" {
				return true
			}
		}
	}
	return false
}

func (p *Parser) resolveMentions(tokens []string, d *core.UserDirective) []ident.AgentID {
	if p.registry == nil {
		return nil
	}
	seen := make(map[ident.AgentID]bool)
	var out []ident.AgentID
	for i := range tokens {
		id, ok := p.matchAgentAt(tokens, i)
		if !ok || seen[id] {
			continue
		}
		if excludedAt(tokens, i) {
			d.AddParsingNote(fmt.Sprintf("mention %q excluded as false positive", tokens[i]))
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// excludedAt reports whether the token at position i is covered by an
// exclusion phrase occurrence.
func excludedAt(tokens []string, i int) bool {
	for _, phrase := range exclusionPhrases {
		for off := 0; off < len(phrase); off++ {
			start := i - off
			if start < 0 || start+len(phrase) > len(tokens) {
				continue
			}
			match := true
			for j, w := range phrase {
				if tokens[start+j] != w {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
	}
	return false
}
