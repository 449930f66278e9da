// Package thread manages conversation threads and their persisted turns.
package thread

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentd-ai/agentd/internal/event"
	"github.com/agentd-ai/agentd/internal/storage"
	"github.com/agentd-ai/agentd/pkg/types"
)

// Service manages thread lifecycle and turn persistence. Threads live
// under "thread/<id>", their turns under "turn/<threadID>/<turnID>", and
// archived threads move to "archive/<id>" without being mutated.
type Service struct {
	storage *storage.Storage
}

// NewService creates a new thread service.
func NewService(store *storage.Storage) *Service {
	return &Service{storage: store}
}

// Create creates a new thread rooted at directory.
func (s *Service) Create(ctx context.Context, directory, title string) (*types.Thread, error) {
	now := time.Now().UnixMilli()
	if title == "" {
		title = "New Thread"
	}

	thread := &types.Thread{
		ID:        generateID(),
		Title:     title,
		Directory: directory,
		Time: types.ThreadTime{
			Created: now,
			Updated: now,
		},
	}

	if err := s.storage.Put(ctx, []string{"thread", thread.ID}, thread); err != nil {
		return nil, fmt.Errorf("save thread: %w", err)
	}

	event.Publish(event.Event{
		Type: event.ThreadCreated,
		Data: event.ThreadCreatedData{Thread: thread},
	})
	return thread, nil
}

// Get retrieves an active thread by ID.
func (s *Service) Get(ctx context.Context, threadID string) (*types.Thread, error) {
	var thread types.Thread
	if err := s.storage.Get(ctx, []string{"thread", threadID}, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// List returns all active threads, newest first.
func (s *Service) List(ctx context.Context) ([]*types.Thread, error) {
	ids, err := s.storage.List(ctx, []string{"thread"})
	if err != nil {
		return nil, err
	}

	threads := make([]*types.Thread, 0, len(ids))
	for _, id := range ids {
		var thread types.Thread
		if err := s.storage.Get(ctx, []string{"thread", id}, &thread); err != nil {
			continue
		}
		threads = append(threads, &thread)
	}

	// ULIDs sort lexicographically by creation time, so reverse for
	// newest first.
	for i, j := 0, len(threads)-1; i < j; i, j = i+1, j-1 {
		threads[i], threads[j] = threads[j], threads[i]
	}
	return threads, nil
}

// Update applies the given field updates to a thread.
func (s *Service) Update(ctx context.Context, threadID string, updates map[string]any) (*types.Thread, error) {
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if title, ok := updates["title"].(string); ok {
		thread.Title = title
	}
	thread.Time.Updated = time.Now().UnixMilli()

	if err := s.storage.Put(ctx, []string{"thread", thread.ID}, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// Archive moves a thread out of the active set. The thread record and its
// turns are preserved unchanged.
func (s *Service) Archive(ctx context.Context, threadID string) error {
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return err
	}

	thread.Archived = true
	if err := s.storage.Put(ctx, []string{"thread", threadID}, thread); err != nil {
		return err
	}
	if err := s.storage.Move(ctx, []string{"thread", threadID}, []string{"archive", threadID}); err != nil {
		return err
	}

	event.Publish(event.Event{
		Type: event.ThreadArchived,
		Data: event.ThreadArchivedData{Thread: thread},
	})
	return nil
}

// SaveTurn persists a turn under its thread and bumps the thread's
// updated timestamp.
func (s *Service) SaveTurn(ctx context.Context, turn *types.Turn) error {
	if err := s.storage.Put(ctx, []string{"turn", turn.ThreadID, turn.ID}, turn); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	if _, err := s.Update(ctx, turn.ThreadID, nil); err != nil && err != storage.ErrNotFound {
		return err
	}
	return nil
}

// Turns returns all persisted turns of a thread in creation order.
func (s *Service) Turns(ctx context.Context, threadID string) ([]*types.Turn, error) {
	ids, err := s.storage.List(ctx, []string{"turn", threadID})
	if err != nil {
		return nil, err
	}

	turns := make([]*types.Turn, 0, len(ids))
	for _, id := range ids {
		var turn types.Turn
		if err := s.storage.Get(ctx, []string{"turn", threadID, id}, &turn); err != nil {
			continue
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

func generateID() string {
	return ulid.Make().String()
}
