package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd-ai/agentd/internal/event"
)

func TestRequestExecRoundTrip(t *testing.T) {
	event.Reset()
	s := NewService()

	requested := make(chan event.ApprovalRequestedData, 1)
	unsubscribe := event.Subscribe(event.ApprovalRequested, func(e event.Event) {
		requested <- e.Data.(event.ApprovalRequestedData)
	})
	defer unsubscribe()

	type result struct {
		decision ReviewDecision
		err      error
	}
	done := make(chan result, 1)
	go func() {
		decision, err := s.RequestExec(context.Background(), ExecRequest{
			ThreadID: "th_1",
			TurnID:   "turn_1",
			Command:  []string{"npm", "install"},
			Cwd:      "/work",
			Reason:   ReasonPrompt,
		})
		done <- result{decision, err}
	}()

	var req event.ApprovalRequestedData
	select {
	case req = <-requested:
	case <-time.After(2 * time.Second):
		t.Fatal("approval request never published")
	}
	require.NotEmpty(t, req.ID)
	assert.Equal(t, []string{"npm", "install"}, req.Command)

	require.NoError(t, s.Resolve(req.ID, ApprovedForSession))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, ApprovedForSession, res.decision)
	case <-time.After(2 * time.Second):
		t.Fatal("request never unblocked")
	}
}

func TestResolveUnknownRequest(t *testing.T) {
	event.Reset()
	s := NewService()

	var unknown *UnknownRequestError
	require.ErrorAs(t, s.Resolve("nope", Approved), &unknown)
	assert.Equal(t, "nope", unknown.ID)
}

func TestRequestCancelledByContext(t *testing.T) {
	event.Reset()
	s := NewService()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RequestExec(ctx, ExecRequest{Command: []string{"ls"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveTwiceFails(t *testing.T) {
	event.Reset()
	s := NewService()

	requested := make(chan event.ApprovalRequestedData, 1)
	unsubscribe := event.Subscribe(event.ApprovalRequested, func(e event.Event) {
		requested <- e.Data.(event.ApprovalRequestedData)
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.RequestExec(context.Background(), ExecRequest{Command: []string{"ls"}})
	}()

	req := <-requested
	require.NoError(t, s.Resolve(req.ID, Denied))
	<-done

	assert.Error(t, s.Resolve(req.ID, Approved))
}
