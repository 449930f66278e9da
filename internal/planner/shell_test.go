package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd-ai/agentd/internal/turn"
	"github.com/agentd-ai/agentd/pkg/types"
)

func TestPlanSplitsLinesIntoOneBatch(t *testing.T) {
	p := NewShellPlanner("")

	actions, err := p.Plan(context.Background(), turn.PlanRequest{
		Input: []types.UserInput{types.TextInput("ls -la\n# a comment\n\ngit status")},
	})
	require.NoError(t, err)
	require.Len(t, actions, 2)

	batch, ok := actions[0].(turn.CommandBatchAction)
	require.True(t, ok)
	require.Len(t, batch.Commands, 2)
	assert.Equal(t, []string{"bash", "-lc", "ls -la"}, batch.Commands[0].Command)
	assert.Equal(t, []string{"bash", "-lc", "git status"}, batch.Commands[1].Command)
}

func TestPlanEmptyInput(t *testing.T) {
	p := NewShellPlanner("zsh")

	actions, err := p.Plan(context.Background(), turn.PlanRequest{
		Input: []types.UserInput{types.TextInput("   ")},
	})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	_, ok := actions[0].(turn.SayAction)
	assert.True(t, ok)
}
