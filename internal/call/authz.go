package call

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rizwanabdullah11/taskcall/internal/domain"
)

const (
	taskCacheTTL   = 30 * time.Second
	taskCacheSweep = time.Minute
)

// authorizer decides whether a user may join a call on a given task. Only
// the task's client and assignee participate; everyone else is rejected
// before any store write happens. Task rows are cached briefly so repeated
// join attempts do not hammer the directory.
type authorizer struct {
	dir   domain.TaskDirectory
	tasks *cache.Cache
}

func newAuthorizer(dir domain.TaskDirectory) *authorizer {
	return &authorizer{
		dir:   dir,
		tasks: cache.New(taskCacheTTL, taskCacheSweep),
	}
}

func (a *authorizer) canJoin(ctx context.Context, taskID, userID string) error {
	task, err := a.lookup(ctx, taskID)
	if err != nil {
		return err
	}
	if !task.IsParticipant(userID) {
		return &domain.CallError{
			Kind: domain.ErrKindNotAuthorized,
			Err:  fmt.Errorf("user %s is not a participant of task %s", userID, taskID),
		}
	}
	return nil
}

func (a *authorizer) lookup(ctx context.Context, taskID string) (*domain.Task, error) {
	if cached, ok := a.tasks.Get(taskID); ok {
		return cached.(*domain.Task), nil
	}
	task, err := a.dir.FindTask(ctx, taskID)
	if err != nil {
		// A task that cannot be resolved cannot authorize anyone.
		return nil, &domain.CallError{
			Kind: domain.ErrKindNotAuthorized,
			Err:  fmt.Errorf("resolve task %s: %w", taskID, err),
		}
	}
	a.tasks.SetDefault(taskID, task)
	return task, nil
}
