package approval

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/agentd-ai/agentd/internal/event"
	"github.com/agentd-ai/agentd/internal/logging"
)

// Service carries approval requests to the client and blocks the asking
// command until the client answers. Requests are delivered out-of-band on
// the event bus; answers arrive through Resolve. Only the asking command
// suspends: independent commands in the same turn keep running.
type Service struct {
	pending pendingMap
}

type pendingMap struct {
	mu sync.Mutex
	m  map[string]chan ReviewDecision
}

// NewService creates a new approval service.
func NewService() *Service {
	return &Service{pending: pendingMap{m: make(map[string]chan ReviewDecision)}}
}

// RequestExec asks the client to confirm a command and waits for the
// answer. Cancelling ctx abandons the request.
func (s *Service) RequestExec(ctx context.Context, req ExecRequest) (ReviewDecision, error) {
	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	ch := s.register(req.ID)
	defer s.unregister(req.ID)

	event.Publish(event.Event{
		Type: event.ApprovalRequested,
		Data: event.ApprovalRequestedData{
			ID:       req.ID,
			ThreadID: req.ThreadID,
			TurnID:   req.TurnID,
			CallID:   req.CallID,
			Command:  req.Command,
			Cwd:      req.Cwd,
			Reason:   req.Reason,
		},
	})
	logging.Debug().Str("id", req.ID).Strs("command", req.Command).Msg("requesting command approval")

	return s.wait(ctx, ch)
}

// RequestPatch asks the client to confirm file changes and waits for the
// answer.
func (s *Service) RequestPatch(ctx context.Context, req PatchRequest) (ReviewDecision, error) {
	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	ch := s.register(req.ID)
	defer s.unregister(req.ID)

	event.Publish(event.Event{
		Type: event.ApprovalRequested,
		Data: event.ApprovalRequestedData{
			ID:        req.ID,
			ThreadID:  req.ThreadID,
			TurnID:    req.TurnID,
			CallID:    req.CallID,
			Changes:   req.Changes,
			Reason:    req.Reason,
			GrantRoot: req.GrantRoot,
		},
	})
	logging.Debug().Str("id", req.ID).Int("changes", len(req.Changes)).Msg("requesting patch approval")

	return s.wait(ctx, ch)
}

// Resolve delivers the client's decision for a pending request. Resolving
// an unknown id is a protocol error and does not affect other in-flight
// requests.
func (s *Service) Resolve(id string, decision ReviewDecision) error {
	s.pending.mu.Lock()
	ch, ok := s.pending.m[id]
	s.pending.mu.Unlock()
	if !ok {
		return &UnknownRequestError{ID: id}
	}

	select {
	case ch <- decision:
	default:
		// Already resolved; treat the duplicate as unknown.
		return &UnknownRequestError{ID: id}
	}

	event.Publish(event.Event{
		Type: event.ApprovalResolved,
		Data: event.ApprovalResolvedData{ID: id, Decision: string(decision)},
	})
	return nil
}

func (s *Service) register(id string) chan ReviewDecision {
	ch := make(chan ReviewDecision, 1)
	s.pending.mu.Lock()
	s.pending.m[id] = ch
	s.pending.mu.Unlock()
	return ch
}

func (s *Service) unregister(id string) {
	s.pending.mu.Lock()
	delete(s.pending.m, id)
	s.pending.mu.Unlock()
}

func (s *Service) wait(ctx context.Context, ch chan ReviewDecision) (ReviewDecision, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case decision := <-ch:
		return decision, nil
	}
}
