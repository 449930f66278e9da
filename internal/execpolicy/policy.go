package execpolicy

// Policy is an immutable, compiled set of prefix rules indexed by program
// name. Classification is pure computation: identical inputs always yield
// identical results.
type Policy struct {
	rulesByProgram map[string][]*PrefixRule
}

// Empty returns a policy with no rules; every command evaluates to no match.
func Empty() *Policy {
	return &Policy{rulesByProgram: map[string][]*PrefixRule{}}
}

// Evaluation is the result of classifying a command against a policy.
// A zero Evaluation (Match == false) means no rule matched, which is
// distinct from an explicit allow: callers decide how to treat an
// unclassified command.
type Evaluation struct {
	Match        bool        `json:"match"`
	Decision     Decision    `json:"decision,omitempty"`
	MatchedRules []RuleMatch `json:"matchedRules,omitempty"`
}

// StrictestPrefix returns the matched prefix of the rule that produced the
// effective decision. With several rules at the same strictness the first
// declared wins.
func (e Evaluation) StrictestPrefix() []string {
	for _, m := range e.MatchedRules {
		if m.Decision == e.Decision {
			return m.MatchedPrefix
		}
	}
	return nil
}

// Rules returns the total number of compiled rules, for diagnostics.
func (p *Policy) Rules() int {
	n := 0
	for _, rules := range p.rulesByProgram {
		n += len(rules)
	}
	return n
}

// Check classifies a single command argument vector. All matching rules are
// collected; the effective decision is the strictest among them.
func (p *Policy) Check(cmd []string) Evaluation {
	if len(cmd) == 0 {
		return Evaluation{}
	}

	var matched []RuleMatch
	decision := DecisionAllow
	for _, rule := range p.rulesByProgram[cmd[0]] {
		if m, ok := rule.Match(cmd); ok {
			matched = append(matched, m)
			decision = Stricter(decision, m.Decision)
		}
	}
	if len(matched) == 0 {
		return Evaluation{}
	}
	return Evaluation{Match: true, Decision: decision, MatchedRules: matched}
}

// CheckAll classifies several commands (e.g. the plain commands of a shell
// script) and combines their matches, taking the strictest decision across
// all of them. If none of the commands match any rule the result is no
// match.
func (p *Policy) CheckAll(commands [][]string) Evaluation {
	var matched []RuleMatch
	decision := DecisionAllow
	for _, cmd := range commands {
		eval := p.Check(cmd)
		if !eval.Match {
			continue
		}
		matched = append(matched, eval.MatchedRules...)
		decision = Stricter(decision, eval.Decision)
	}
	if len(matched) == 0 {
		return Evaluation{}
	}
	return Evaluation{Match: true, Decision: decision, MatchedRules: matched}
}
