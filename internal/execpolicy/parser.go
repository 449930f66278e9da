package execpolicy

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

// ValidationError describes a malformed rule declaration. Any validation
// error aborts the load of the whole rule set: running with partial rules
// could silently under-restrict command execution.
type ValidationError struct {
	Source string
	Rule   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: rule %d: %s", e.Source, e.Rule, e.Reason)
}

// ruleFile is the top-level shape of a *.policy document.
type ruleFile struct {
	Rules []ruleDecl `yaml:"rules"`
}

// ruleDecl is one declarative rule. Pattern tokens are either a literal
// string or a list of literal alternatives. The optional match / not_match
// example command lines are verified at load time against the rule itself.
type ruleDecl struct {
	Pattern  []yamlToken   `yaml:"pattern"`
	Decision *Decision     `yaml:"decision"`
	Match    []yamlExample `yaml:"match"`
	NotMatch []yamlExample `yaml:"not_match"`
}

// yamlToken accepts a scalar string or a sequence of strings.
type yamlToken struct {
	Alts []string
}

func (t *yamlToken) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		t.Alts = []string{s}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&t.Alts)
	default:
		return fmt.Errorf("pattern token must be a string or a list of strings")
	}
}

// yamlExample accepts a pre-tokenized command or a command line string,
// which is split with shell word rules.
type yamlExample struct {
	Tokens []string
	Raw    string
}

func (e *yamlExample) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		tokens, err := shell.Fields(s, func(string) string { return "" })
		if err != nil {
			return fmt.Errorf("cannot tokenize example %q: %w", s, err)
		}
		e.Tokens = tokens
		e.Raw = s
		return nil
	case yaml.SequenceNode:
		if err := node.Decode(&e.Tokens); err != nil {
			return err
		}
		e.Raw = strings.Join(e.Tokens, " ")
		return nil
	default:
		return fmt.Errorf("example must be a string or a list of strings")
	}
}

// Parser accumulates rules from one or more policy sources. Sources are
// merged by concatenation in the order supplied; since evaluation collects
// all matches, order only affects diagnostics.
type Parser struct {
	rules []*PrefixRule
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse loads one policy document. The source name is used in error
// messages only. A single invalid rule fails the whole call and leaves the
// parser unchanged.
func (p *Parser) Parse(source string, data []byte) error {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	parsed := make([]*PrefixRule, 0, len(file.Rules))
	for i, decl := range file.Rules {
		rules, err := compileRule(source, i, decl)
		if err != nil {
			return err
		}
		parsed = append(parsed, rules...)
	}
	p.rules = append(p.rules, parsed...)
	return nil
}

// Build compiles the accumulated rules into an immutable policy.
func (p *Parser) Build() *Policy {
	byProgram := make(map[string][]*PrefixRule)
	for _, rule := range p.rules {
		byProgram[rule.Program] = append(byProgram[rule.Program], rule)
	}
	return &Policy{rulesByProgram: byProgram}
}

// compileRule validates a declaration and expands first-token alternatives
// into one rule per program. Tail alternatives stay positional and are not
// cartesian-expanded.
func compileRule(source string, index int, decl ruleDecl) ([]*PrefixRule, error) {
	fail := func(format string, args ...any) error {
		return &ValidationError{Source: source, Rule: index, Reason: fmt.Sprintf(format, args...)}
	}

	if len(decl.Pattern) == 0 {
		return nil, fail("pattern must not be empty")
	}
	for ti, token := range decl.Pattern {
		if len(token.Alts) == 0 {
			return nil, fail("pattern token %d has no alternatives", ti)
		}
		for _, alt := range token.Alts {
			if alt == "" {
				return nil, fail("pattern token %d contains an empty string", ti)
			}
		}
	}

	decision := DecisionAllow
	if decl.Decision != nil {
		decision = *decl.Decision
	}

	rest := make([]PatternToken, 0, len(decl.Pattern)-1)
	for _, token := range decl.Pattern[1:] {
		rest = append(rest, PatternToken{Alts: token.Alts})
	}

	rules := make([]*PrefixRule, 0, len(decl.Pattern[0].Alts))
	for _, program := range decl.Pattern[0].Alts {
		rules = append(rules, &PrefixRule{Program: program, Rest: rest, Decision: decision})
	}

	// Load-time self-test: every match example must match the rule being
	// defined, every not_match example must not.
	matches := func(cmd []string) bool {
		for _, rule := range rules {
			if _, ok := rule.Match(cmd); ok {
				return true
			}
		}
		return false
	}
	for _, example := range decl.Match {
		if !matches(example.Tokens) {
			return nil, fail("match example %q does not match the rule's pattern", example.Raw)
		}
	}
	for _, example := range decl.NotMatch {
		if matches(example.Tokens) {
			return nil, fail("not_match example %q matches the rule's pattern", example.Raw)
		}
	}

	return rules, nil
}
