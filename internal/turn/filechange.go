package turn

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/agentd-ai/agentd/internal/approval"
	"github.com/agentd-ai/agentd/internal/event"
	"github.com/agentd-ai/agentd/internal/logging"
	"github.com/agentd-ai/agentd/pkg/types"
)

// applyFileChange applies a planner's file edits as one item. Edits whose
// targets fall outside the sandbox's writable roots need the client to
// grant write access first; an approved_for_session grant widens the
// session's writable roots for later changes.
func (r *turnRun) applyFileChange(ctx context.Context, action FileChangeAction) {
	edits := r.resolveEdits(action.Edits)

	changes := make([]types.FileUpdateChange, 0, len(edits))
	for _, edit := range edits {
		changes = append(changes, types.FileUpdateChange{
			Path: edit.Path,
			Kind: edit.Kind,
			Diff: diffText(edit),
		})
	}

	item := &types.FileChangeItem{
		ID:      newItemID(),
		Type:    "file_change",
		Changes: changes,
		Status:  types.ItemInProgress,
	}
	r.emitItem(event.ItemStarted, item)

	if grantRoot := r.outsideRoot(edits); grantRoot != "" {
		if r.opts.ApprovalPolicy == types.ApprovalNever {
			r.failFileChange(item)
			return
		}
		decision, err := r.requestPatchApproval(ctx, changes, grantRoot)
		if err != nil || !decision.Granted() {
			if decision == approval.Abort {
				r.aborted.Store(true)
			}
			r.failFileChange(item)
			return
		}
		if decision == approval.ApprovedForSession {
			r.cache.ApproveRoot(grantRoot)
		}
	}

	for _, edit := range edits {
		if err := applyEdit(edit); err != nil {
			logging.Error().Err(err).Str("path", edit.Path).Msg("file edit failed")
			r.failFileChange(item)
			return
		}
	}

	r.emitItem(event.ItemUpdated, item)
	item.Status = types.ItemCompleted
	r.emitItem(event.ItemCompleted, item)
	r.record(item)
}

// resolveEdits anchors relative edit paths to the thread directory. The
// same resolved path is used for the writability check and the write, so
// an edit can never land somewhere other than where it was approved.
func (r *turnRun) resolveEdits(edits []FileEdit) []FileEdit {
	resolved := make([]FileEdit, len(edits))
	for i, edit := range edits {
		if !filepath.IsAbs(edit.Path) {
			edit.Path = filepath.Join(r.thread.Directory, edit.Path)
		}
		resolved[i] = edit
	}
	return resolved
}

// outsideRoot returns the directory of the first edit the sandbox would
// not allow, or "" when every edit is already writable. Paths must
// already be resolved.
func (r *turnRun) outsideRoot(edits []FileEdit) string {
	if r.opts.Sandbox.FullAccess() {
		return ""
	}
	roots := r.cache.Roots()
	for _, edit := range edits {
		if r.opts.Sandbox.AllowsWrite(edit.Path, r.thread.Directory) {
			continue
		}
		granted := false
		for _, root := range roots {
			if within(edit.Path, root) {
				granted = true
				break
			}
		}
		if !granted {
			return filepath.Dir(edit.Path)
		}
	}
	return ""
}

func (r *turnRun) requestPatchApproval(ctx context.Context, changes []types.FileUpdateChange, grantRoot string) (approval.ReviewDecision, error) {
	r.mu.Lock()
	r.approvals++
	r.mu.Unlock()

	return r.ctrl.approvals.RequestPatch(ctx, approval.PatchRequest{
		ThreadID:  r.thread.ID,
		TurnID:    r.turn.ID,
		Changes:   changes,
		Reason:    "changes fall outside the writable workspace",
		GrantRoot: grantRoot,
	})
}

func (r *turnRun) failFileChange(item *types.FileChangeItem) {
	item.Status = types.ItemFailed
	r.emitItem(event.ItemCompleted, item)
	r.record(item)
}

func applyEdit(edit FileEdit) error {
	switch edit.Kind {
	case types.FileDelete:
		return os.Remove(edit.Path)
	case types.FileAdd:
		if err := os.MkdirAll(filepath.Dir(edit.Path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(edit.Path, []byte(edit.NewContent), 0o644)
	default:
		return os.WriteFile(edit.Path, []byte(edit.NewContent), 0o644)
	}
}

func diffText(edit FileEdit) string {
	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(edit.OldContent, dmp.DiffMain(edit.OldContent, edit.NewContent, false))
	return dmp.PatchToText(patches)
}

func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !hasParentPrefix(rel))
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
