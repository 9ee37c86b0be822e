package services

import (
	"context"

	"cleanrate/app/models"
)

// TaskService handles task-related reads.
type TaskService struct {
	repo Repository
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(repo Repository) *TaskService {
	return &TaskService{repo: repo}
}

// GetTaskByID retrieves a single task by its ID.
func (s *TaskService) GetTaskByID(ctx context.Context, taskID string) (models.Task, error) {
	var task models.Task
	err := s.repo.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		task, err = tx.GetTask(ctx, taskID)
		return err
	})
	return task, err
}

// GetChildren retrieves the direct children of a task.
func (s *TaskService) GetChildren(ctx context.Context, taskID string) ([]models.Task, error) {
	return s.list(ctx, func(ctx context.Context, h Hierarchy) ([]models.Task, error) {
		return h.ChildrenOf(ctx, taskID)
	})
}

// GetSiblings retrieves the tasks sharing the task's parent, the task included.
func (s *TaskService) GetSiblings(ctx context.Context, taskID string) ([]models.Task, error) {
	return s.list(ctx, func(ctx context.Context, h Hierarchy) ([]models.Task, error) {
		return h.SiblingsOf(ctx, taskID)
	})
}

// GetRootTasks retrieves the parentless tasks of a project.
func (s *TaskService) GetRootTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	return s.list(ctx, func(ctx context.Context, h Hierarchy) ([]models.Task, error) {
		return h.RootTasksOf(ctx, projectID)
	})
}

// GetReview retrieves the review of a task.
func (s *TaskService) GetReview(ctx context.Context, taskID string) (models.Review, error) {
	var review models.Review
	err := s.repo.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		review, err = tx.GetReview(ctx, taskID)
		return err
	})
	return review, err
}

func (s *TaskService) list(ctx context.Context, fn func(ctx context.Context, h Hierarchy) ([]models.Task, error)) ([]models.Task, error) {
	var tasks []models.Task
	err := s.repo.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		tasks, err = fn(ctx, NewHierarchy(tx))
		return err
	})
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}
