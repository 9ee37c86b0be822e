package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cleanrate/app/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ProjectService creates projects with their task forest and reads them back.
type ProjectService struct {
	repo Repository
	now  func() time.Time
}

// NewProjectService creates a new instance of ProjectService.
func NewProjectService(repo Repository) *ProjectService {
	return &ProjectService{repo: repo, now: time.Now}
}

// CreateProject stores a project and every task of its tree in one transaction. All
// ratings start absent.
func (s *ProjectService) CreateProject(ctx context.Context, in models.NewProject) (models.Project, []models.Task, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Project{}, nil, fmt.Errorf("project name is required: %w", ErrInvalidInput)
	}
	if len(in.Tasks) == 0 {
		return models.Project{}, nil, fmt.Errorf("project needs at least one task: %w", ErrInvalidInput)
	}

	project := models.Project{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	tasks, err := flatten(project.ID, nil, in.Tasks)
	if err != nil {
		return models.Project{}, nil, err
	}

	err = s.repo.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertProject(ctx, project); err != nil {
			return err
		}
		for _, t := range tasks {
			if err := tx.InsertTask(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Project{}, nil, err
	}
	log.Info().Str("project_id", project.ID).Int("tasks", len(tasks)).Msg("project created")
	return project, tasks, nil
}

// GetProjectByID retrieves a project with its aggregate rating.
func (s *ProjectService) GetProjectByID(ctx context.Context, projectID string) (models.Project, error) {
	var project models.Project
	err := s.repo.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		project, err = tx.GetProject(ctx, projectID)
		return err
	})
	return project, err
}

// flatten assigns ids to a nested task tree and returns it parents-first.
func flatten(projectID string, parentID *string, in []models.NewTask) ([]models.Task, error) {
	var out []models.Task
	for i, nt := range in {
		title := strings.TrimSpace(nt.Title)
		if title == "" {
			return nil, fmt.Errorf("task title is required: %w", ErrInvalidInput)
		}
		task := models.Task{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			ParentID:  parentID,
			Title:     title,
			Position:  i,
		}
		out = append(out, task)
		id := task.ID
		children, err := flatten(projectID, &id, nt.Children)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
	}
	return out, nil
}
