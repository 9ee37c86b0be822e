package services

import (
	"context"

	"cleanrate/app/models"
)

// TaskStore persists task nodes. SaveTask succeeds only when task.Version matches the
// stored version, and bumps it.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (models.Task, error)
	TaskExists(ctx context.Context, id string) (bool, error)
	InsertTask(ctx context.Context, task models.Task) error
	SaveTask(ctx context.Context, task models.Task) error
	// ChildrenOf returns the direct children of parentID ordered by position.
	ChildrenOf(ctx context.Context, parentID string) ([]models.Task, error)
	// RootTasksOf returns the parentless tasks of a project ordered by position.
	RootTasksOf(ctx context.Context, projectID string) ([]models.Task, error)
}

// ProjectStore persists projects and their aggregate rating.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (models.Project, error)
	ProjectExists(ctx context.Context, id string) (bool, error)
	InsertProject(ctx context.Context, project models.Project) error
	SaveProject(ctx context.Context, project models.Project) error
}

// ReviewStore persists task reviews, at most one per task.
type ReviewStore interface {
	GetReview(ctx context.Context, taskID string) (models.Review, error)
	ReviewExists(ctx context.Context, taskID string) (bool, error)
	InsertReview(ctx context.Context, review models.Review) error
}

// Tx is the view of all stores inside one transaction.
type Tx interface {
	TaskStore
	ProjectStore
	ReviewStore
}

// Repository runs functions inside store transactions. Atomically commits every write of
// fn or none of them; a row changed by a concurrent transaction makes it fail with
// ErrConcurrencyConflict. View runs fn read-only.
type Repository interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
