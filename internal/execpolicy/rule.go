package execpolicy

// PatternToken matches a single command token: either one literal string or
// any member of a set of literal alternatives.
type PatternToken struct {
	Alts []string
}

// Matches reports whether the token matches a command token by exact string
// equality against any alternative.
func (t PatternToken) Matches(tok string) bool {
	for _, alt := range t.Alts {
		if alt == tok {
			return true
		}
	}
	return false
}

// PrefixRule classifies commands whose leading tokens match its pattern.
// The first pattern token is always a single literal (alternatives in the
// first position are expanded into one rule per program at parse time).
type PrefixRule struct {
	Program  string
	Rest     []PatternToken
	Decision Decision
}

// RuleMatch records one rule that matched a command, with the concrete
// command tokens the pattern consumed.
type RuleMatch struct {
	MatchedPrefix []string `json:"matchedPrefix"`
	Decision      Decision `json:"decision"`
}

// Match attempts a left-to-right prefix match of the rule's pattern against
// the command. Extra trailing command tokens are ignored.
func (r *PrefixRule) Match(cmd []string) (RuleMatch, bool) {
	if len(cmd) < 1+len(r.Rest) {
		return RuleMatch{}, false
	}
	if cmd[0] != r.Program {
		return RuleMatch{}, false
	}
	for i, token := range r.Rest {
		if !token.Matches(cmd[1+i]) {
			return RuleMatch{}, false
		}
	}

	prefix := make([]string, 1+len(r.Rest))
	copy(prefix, cmd[:1+len(r.Rest)])
	return RuleMatch{MatchedPrefix: prefix, Decision: r.Decision}, true
}
