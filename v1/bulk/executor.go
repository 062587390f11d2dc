// Package bulk runs activate, deactivate and delete over a selection of agents
// and reports per-item outcomes.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Action is the operation applied to every selected id
type Action string

const (
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionDelete     Action = "delete"
)

// ParseAction validates an action name
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionActivate, ActionDeactivate, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("unknown bulk action %q", s)
}

// ErrEmptySelection is returned when no usable id was selected
var ErrEmptySelection = errors.New("no items selected")

// BatchUpdater applies a status change to many ids in one call and returns the affected row count
type BatchUpdater func(ctx context.Context, ids []string, action Action) (int64, error)

// ItemDeleter deletes a single id
type ItemDeleter func(ctx context.Context, id string) error

// ItemResult is the outcome for one id
type ItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result aggregates a bulk run
type Result struct {
	Action       Action       `json:"action"`
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	Items        []ItemResult `json:"items,omitempty"`
}

// Executor dispatches bulk actions to its collaborators
type Executor struct {
	update BatchUpdater
	remove ItemDeleter
}

// NewExecutor creates a new executor
func NewExecutor(update BatchUpdater, remove ItemDeleter) *Executor {
	return &Executor{update: update, remove: remove}
}

// Dedupe trims ids and drops blanks and repeats, keeping first-seen order
func Dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Run executes action over ids.
// Activate and deactivate are one batched call; delete runs item by item and keeps earlier successes.
func (e *Executor) Run(ctx context.Context, action Action, ids []string) (*Result, error) {
	ids = Dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	switch action {
	case ActionActivate, ActionDeactivate:
		return e.runBatch(ctx, action, ids), nil
	case ActionDelete:
		return e.runSequential(ctx, ids), nil
	}
	return nil, fmt.Errorf("unknown bulk action %q", action)
}

func (e *Executor) runBatch(ctx context.Context, action Action, ids []string) *Result {
	result := &Result{Action: action}

	affected, err := e.update(ctx, ids, action)
	if err != nil {
		result.FailureCount = len(ids)
		result.Items = make([]ItemResult, len(ids))
		for i, id := range ids {
			result.Items[i] = ItemResult{ID: id, Error: err.Error()}
		}
		return result
	}

	if affected > int64(len(ids)) {
		affected = int64(len(ids))
	}
	if affected < 0 {
		affected = 0
	}
	result.SuccessCount = int(affected)
	result.FailureCount = len(ids) - int(affected)
	return result
}

func (e *Executor) runSequential(ctx context.Context, ids []string) *Result {
	result := &Result{Action: ActionDelete, Items: make([]ItemResult, 0, len(ids))}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Items = append(result.Items, ItemResult{ID: id, Error: err.Error()})
			result.FailureCount++
			continue
		}
		if err := e.remove(ctx, id); err != nil {
			result.Items = append(result.Items, ItemResult{ID: id, Error: err.Error()})
			result.FailureCount++
			continue
		}
		result.Items = append(result.Items, ItemResult{ID: id, Success: true})
		result.SuccessCount++
	}
	return result
}

// Named is the subset of an agent needed to build a confirmation phrase
type Named interface {
	FullName() string
}

// ExpectedConfirmation is the phrase a user must type before a delete.
// One agent: "DELETE {first} {last}"; several: "DELETE {n} AGENTS".
func ExpectedConfirmation(agents []Named) string {
	if len(agents) == 1 {
		return "DELETE " + agents[0].FullName()
	}
	return fmt.Sprintf("DELETE %d AGENTS", len(agents))
}

// ConfirmationMatches compares exactly, without trimming or case folding
func ConfirmationMatches(typed, expected string) bool {
	return typed == expected
}
