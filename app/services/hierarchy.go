package services

import (
	"context"
	"fmt"

	"cleanrate/app/models"
)

// HierarchyReader is the read side of the task and project stores.
type HierarchyReader interface {
	GetTask(ctx context.Context, id string) (models.Task, error)
	TaskExists(ctx context.Context, id string) (bool, error)
	ChildrenOf(ctx context.Context, parentID string) ([]models.Task, error)
	RootTasksOf(ctx context.Context, projectID string) ([]models.Task, error)
	ProjectExists(ctx context.Context, id string) (bool, error)
}

// Hierarchy navigates a project's task forest.
type Hierarchy struct {
	r HierarchyReader
}

// NewHierarchy creates a navigator over r.
func NewHierarchy(r HierarchyReader) Hierarchy {
	return Hierarchy{r: r}
}

// ChildrenOf returns the direct children of a task.
func (h Hierarchy) ChildrenOf(ctx context.Context, taskID string) ([]models.Task, error) {
	if err := h.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	return h.r.ChildrenOf(ctx, taskID)
}

// SiblingsOf returns every task sharing the task's parent, the task included. Root tasks
// are siblings of the other root tasks of their project.
func (h Hierarchy) SiblingsOf(ctx context.Context, taskID string) ([]models.Task, error) {
	task, err := h.r.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsRoot() {
		return h.RootTasksOf(ctx, task.ProjectID)
	}
	return h.ChildrenOf(ctx, *task.ParentID)
}

// RootTasksOf returns the parentless tasks of a project.
func (h Hierarchy) RootTasksOf(ctx context.Context, projectID string) ([]models.Task, error) {
	ok, err := h.r.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return h.r.RootTasksOf(ctx, projectID)
}

// IsLeaf reports whether a task has no children.
func (h Hierarchy) IsLeaf(ctx context.Context, taskID string) (bool, error) {
	children, err := h.ChildrenOf(ctx, taskID)
	if err != nil {
		return false, err
	}
	return len(children) == 0, nil
}

func (h Hierarchy) requireTask(ctx context.Context, taskID string) error {
	ok, err := h.r.TaskExists(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}
