package types

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ApprovalPolicy describes when human confirmation is required before a
// command runs.
type ApprovalPolicy string

const (
	// ApprovalUntrusted requests confirmation for every command that is not
	// explicitly allowed by the command policy.
	ApprovalUntrusted ApprovalPolicy = "untrusted"
	// ApprovalOnFailure runs commands optimistically inside the sandbox and
	// only asks when one fails due to a sandbox denial.
	ApprovalOnFailure ApprovalPolicy = "on_failure"
	// ApprovalOnRequest lets the agent itself decide when to ask for
	// elevated permissions.
	ApprovalOnRequest ApprovalPolicy = "on_request"
	// ApprovalNever never requests confirmation.
	ApprovalNever ApprovalPolicy = "never"
)

// Valid reports whether p is a known approval policy.
func (p ApprovalPolicy) Valid() bool {
	switch p {
	case ApprovalUntrusted, ApprovalOnFailure, ApprovalOnRequest, ApprovalNever:
		return true
	}
	return false
}

// ParseApprovalPolicy parses a policy name, returning an error for unknown
// values.
func ParseApprovalPolicy(s string) (ApprovalPolicy, error) {
	p := ApprovalPolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown approval policy %q", s)
	}
	return p, nil
}

// SandboxMode selects the isolation envelope for command execution.
type SandboxMode string

const (
	SandboxReadOnly         SandboxMode = "read_only"
	SandboxWorkspaceWrite   SandboxMode = "workspace_write"
	SandboxDangerFullAccess SandboxMode = "danger_full_access"
)

// SandboxPolicy is the concrete isolation envelope passed to command
// execution. It is an immutable snapshot for the lifetime of a turn.
type SandboxPolicy struct {
	Mode SandboxMode `json:"mode"`

	// WritableRoots lists additional writable directories (glob patterns
	// allowed) for workspace_write mode. The turn's working directory is
	// always writable in that mode.
	WritableRoots []string `json:"writableRoots,omitempty"`
	// NetworkAccess permits outbound network use in workspace_write mode.
	NetworkAccess bool `json:"networkAccess,omitempty"`
	// ExcludeTmpdirEnvVar removes $TMPDIR from the writable set.
	ExcludeTmpdirEnvVar bool `json:"excludeTmpdirEnvVar,omitempty"`
	// ExcludeSlashTmp removes /tmp from the writable set.
	ExcludeSlashTmp bool `json:"excludeSlashTmp,omitempty"`
}

// ReadOnlyPolicy returns a sandbox policy that permits no writes.
func ReadOnlyPolicy() SandboxPolicy {
	return SandboxPolicy{Mode: SandboxReadOnly}
}

// WorkspaceWritePolicy returns a sandbox policy writable within the
// workspace plus the given roots.
func WorkspaceWritePolicy(writableRoots ...string) SandboxPolicy {
	return SandboxPolicy{Mode: SandboxWorkspaceWrite, WritableRoots: writableRoots}
}

// FullAccessPolicy returns a sandbox policy with no isolation at all.
func FullAccessPolicy() SandboxPolicy {
	return SandboxPolicy{Mode: SandboxDangerFullAccess}
}

// FullAccess reports whether the policy disables isolation entirely.
func (p SandboxPolicy) FullAccess() bool {
	return p.Mode == SandboxDangerFullAccess
}

// AllowsWrite reports whether a write to path is inside the envelope, given
// the turn's working directory.
func (p SandboxPolicy) AllowsWrite(path, cwd string) bool {
	switch p.Mode {
	case SandboxDangerFullAccess:
		return true
	case SandboxReadOnly:
		return false
	}

	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	for _, root := range p.writableRoots(cwd) {
		if withinRoot(path, root) {
			return true
		}
		// Roots may be glob patterns (e.g. /home/*/scratch).
		if ok, err := doublestar.Match(filepath.Join(root, "**"), path); err == nil && ok {
			return true
		}
	}
	return false
}

// writableRoots returns the effective writable roots for workspace_write.
func (p SandboxPolicy) writableRoots(cwd string) []string {
	roots := []string{cwd}
	roots = append(roots, p.WritableRoots...)
	if !p.ExcludeSlashTmp {
		roots = append(roots, "/tmp")
	}
	if !p.ExcludeTmpdirEnvVar {
		if tmpdir := os.Getenv("TMPDIR"); tmpdir != "" {
			roots = append(roots, tmpdir)
		}
	}
	return roots
}

func withinRoot(path, root string) bool {
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
