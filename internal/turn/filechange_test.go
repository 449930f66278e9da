package turn

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd-ai/agentd/internal/approval"
	"github.com/agentd-ai/agentd/pkg/types"
)

func TestFileChangeInsideWorkspaceApplies(t *testing.T) {
	f := newFixture(t, nil, &fakeRunner{}, types.ApprovalUntrusted, "")
	target := filepath.Join(f.thread.Directory, "hello.txt")

	planner := scriptPlanner{actions: []Action{
		FileChangeAction{Edits: []FileEdit{{
			Path:       target,
			Kind:       types.FileAdd,
			NewContent: "hello\n",
		}}},
	}}
	f.controller.planner = planner
	requests := autoRespond(t, f.controller.approvals, approval.Denied)

	turn, err := f.controller.StartTurn(context.Background(), f.thread.ID, []types.UserInput{types.TextInput("write file")}, nil)
	require.NoError(t, err)

	final := f.waitTurn(t, turn.ID)
	assert.Equal(t, types.TurnCompleted, final.Status)
	assert.Empty(t, *requests, "in-workspace writes need no approval")

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	var item *types.FileChangeItem
	for _, it := range final.Items {
		if fc, ok := it.(*types.FileChangeItem); ok {
			item = fc
		}
	}
	require.NotNil(t, item)
	assert.Equal(t, types.ItemCompleted, item.Status)
	require.Len(t, item.Changes, 1)
	assert.Equal(t, types.FileAdd, item.Changes[0].Kind)
	assert.NotEmpty(t, item.Changes[0].Diff)
}

func TestFileChangeRelativePathResolvesToThreadDir(t *testing.T) {
	f := newFixture(t, nil, &fakeRunner{}, types.ApprovalUntrusted, "")

	planner := scriptPlanner{actions: []Action{
		FileChangeAction{Edits: []FileEdit{{
			Path:       "notes/rel.txt",
			Kind:       types.FileAdd,
			NewContent: "relative\n",
		}}},
	}}
	f.controller.planner = planner
	requests := autoRespond(t, f.controller.approvals, approval.Denied)

	turn, err := f.controller.StartTurn(context.Background(), f.thread.ID, []types.UserInput{types.TextInput("write file")}, nil)
	require.NoError(t, err)

	final := f.waitTurn(t, turn.ID)
	assert.Equal(t, types.TurnCompleted, final.Status)
	assert.Empty(t, *requests, "relative in-workspace writes need no approval")

	content, err := os.ReadFile(filepath.Join(f.thread.Directory, "notes", "rel.txt"))
	require.NoError(t, err)
	assert.Equal(t, "relative\n", string(content))

	// The write must not land relative to the process working directory.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cwd, "notes", "rel.txt"))
	assert.True(t, os.IsNotExist(err))

	var item *types.FileChangeItem
	for _, it := range final.Items {
		if fc, ok := it.(*types.FileChangeItem); ok {
			item = fc
		}
	}
	require.NotNil(t, item)
	require.Len(t, item.Changes, 1)
	assert.Equal(t, filepath.Join(f.thread.Directory, "notes", "rel.txt"), item.Changes[0].Path)
}

func TestFileChangeOutsideWorkspaceNeedsGrant(t *testing.T) {
	f := newFixture(t, nil, &fakeRunner{}, types.ApprovalUntrusted, "")
	outside := t.TempDir()
	target := filepath.Join(outside, "notes.txt")

	planner := scriptPlanner{actions: []Action{
		FileChangeAction{Edits: []FileEdit{{
			Path:       target,
			Kind:       types.FileAdd,
			NewContent: "outside\n",
		}}},
		FileChangeAction{Edits: []FileEdit{{
			Path:       filepath.Join(outside, "more.txt"),
			Kind:       types.FileAdd,
			NewContent: "more\n",
		}}},
	}}
	f.controller.planner = planner
	requests := autoRespond(t, f.controller.approvals, approval.ApprovedForSession)

	turn, err := f.controller.StartTurn(context.Background(), f.thread.ID, []types.UserInput{types.TextInput("write outside")}, nil)
	require.NoError(t, err)

	final := f.waitTurn(t, turn.ID)
	assert.Equal(t, types.TurnCompleted, final.Status)

	// The session-wide grant covers the second change in the same root.
	require.Len(t, *requests, 1)
	assert.Equal(t, outside, (*requests)[0].GrantRoot)

	assert.FileExists(t, target)
	assert.FileExists(t, filepath.Join(outside, "more.txt"))
}

func TestFileChangeDeniedLeavesFilesUntouched(t *testing.T) {
	f := newFixture(t, nil, &fakeRunner{}, types.ApprovalUntrusted, "")
	outside := t.TempDir()
	target := filepath.Join(outside, "notes.txt")

	planner := scriptPlanner{actions: []Action{
		FileChangeAction{Edits: []FileEdit{{
			Path:       target,
			Kind:       types.FileAdd,
			NewContent: "nope\n",
		}}},
	}}
	f.controller.planner = planner
	autoRespond(t, f.controller.approvals, approval.Denied)

	turn, err := f.controller.StartTurn(context.Background(), f.thread.ID, []types.UserInput{types.TextInput("write outside")}, nil)
	require.NoError(t, err)

	final := f.waitTurn(t, turn.ID)
	assert.Equal(t, types.TurnCompleted, final.Status)
	assert.NoFileExists(t, target)

	var item *types.FileChangeItem
	for _, it := range final.Items {
		if fc, ok := it.(*types.FileChangeItem); ok {
			item = fc
		}
	}
	require.NotNil(t, item)
	assert.Equal(t, types.ItemFailed, item.Status)
}

func TestFileChangeUpdateAndDelete(t *testing.T) {
	f := newFixture(t, nil, &fakeRunner{}, types.ApprovalNever, "")
	keep := filepath.Join(f.thread.Directory, "keep.txt")
	gone := filepath.Join(f.thread.Directory, "gone.txt")
	require.NoError(t, os.WriteFile(keep, []byte("old\n"), 0o644))
	require.NoError(t, os.WriteFile(gone, []byte("bye\n"), 0o644))

	planner := scriptPlanner{actions: []Action{
		FileChangeAction{Edits: []FileEdit{
			{Path: keep, Kind: types.FileUpdate, OldContent: "old\n", NewContent: "new\n"},
			{Path: gone, Kind: types.FileDelete},
		}},
	}}
	f.controller.planner = planner

	turn, err := f.controller.StartTurn(context.Background(), f.thread.ID, []types.UserInput{types.TextInput("edit")}, nil)
	require.NoError(t, err)

	final := f.waitTurn(t, turn.ID)
	assert.Equal(t, types.TurnCompleted, final.Status)

	content, err := os.ReadFile(keep)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))
	assert.NoFileExists(t, gone)
}
