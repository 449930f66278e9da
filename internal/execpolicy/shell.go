package execpolicy

import (
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// SplitShellInvocation recognizes commands of the form
// ["bash", "-lc", script] and splits the script into its plain commands so
// each can be classified individually. It returns ok == false when the
// command is not a shell invocation or the script uses constructs beyond
// plain commands joined with &&, ||, ; or |. Callers then classify the
// original argument vector as-is.
func SplitShellInvocation(cmd []string) ([][]string, bool) {
	script, ok := shellScript(cmd)
	if !ok {
		return nil, false
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(script), "")
	if err != nil {
		return nil, false
	}

	var commands [][]string
	for _, stmt := range file.Stmts {
		argvs, ok := plainStatement(stmt)
		if !ok {
			return nil, false
		}
		commands = append(commands, argvs...)
	}
	if len(commands) == 0 {
		return nil, false
	}
	return commands, true
}

// shellScript extracts the script argument from a shell -c invocation.
func shellScript(cmd []string) (string, bool) {
	if len(cmd) < 3 {
		return "", false
	}
	switch filepath.Base(cmd[0]) {
	case "bash", "sh", "zsh", "dash":
	default:
		return "", false
	}

	sawC := false
	for _, flag := range cmd[1 : len(cmd)-1] {
		switch flag {
		case "-c", "-lc", "-cl":
			sawC = true
		case "-l":
		default:
			return "", false
		}
	}
	if !sawC {
		return "", false
	}
	return cmd[len(cmd)-1], true
}

func plainStatement(stmt *syntax.Stmt) ([][]string, bool) {
	if stmt == nil || stmt.Negated || stmt.Background || stmt.Coprocess || len(stmt.Redirs) > 0 {
		return nil, false
	}

	switch node := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		argv, ok := plainCall(node)
		if !ok {
			return nil, false
		}
		return [][]string{argv}, true
	case *syntax.BinaryCmd:
		switch node.Op {
		case syntax.AndStmt, syntax.OrStmt, syntax.Pipe:
		default:
			return nil, false
		}
		left, ok := plainStatement(node.X)
		if !ok {
			return nil, false
		}
		right, ok := plainStatement(node.Y)
		if !ok {
			return nil, false
		}
		return append(left, right...), true
	default:
		return nil, false
	}
}

func plainCall(call *syntax.CallExpr) ([]string, bool) {
	if len(call.Assigns) > 0 || len(call.Args) == 0 {
		return nil, false
	}
	argv := make([]string, 0, len(call.Args))
	for _, word := range call.Args {
		tok, ok := literalWord(word)
		if !ok {
			return nil, false
		}
		argv = append(argv, tok)
	}
	return argv, true
}

// literalWord flattens a word made only of literals and quoted literals.
// Expansions and substitutions disqualify the script from splitting.
func literalWord(word *syntax.Word) (string, bool) {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			if p.Dollar {
				return "", false
			}
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return sb.String(), true
}
