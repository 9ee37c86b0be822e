package services_test

import (
	"context"
	"testing"

	"cleanrate/app/models"
	"cleanrate/app/services"
	"cleanrate/app/storage/memory"

	"github.com/stretchr/testify/require"
)

// node describes a task in a test tree: id and parent id ("" for a root task).
type node struct {
	id     string
	parent string
}

func newStore(t *testing.T, projectID string, nodes ...node) *memory.Store {
	t.Helper()
	s := memory.New()
	err := s.Atomically(context.Background(), func(ctx context.Context, tx services.Tx) error {
		if err := tx.InsertProject(ctx, models.Project{ID: projectID, Name: projectID}); err != nil {
			return err
		}
		for i, n := range nodes {
			task := models.Task{ID: n.id, ProjectID: projectID, Title: n.id, Position: i}
			if n.parent != "" {
				parent := n.parent
				task.ParentID = &parent
			}
			if err := tx.InsertTask(ctx, task); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return s
}

func newEngine(repo services.Repository) *services.Engine {
	return services.NewEngine(repo, services.DefaultRetryPolicy())
}

func taskRating(t *testing.T, repo services.Repository, id string) *float64 {
	t.Helper()
	task, err := services.NewTaskService(repo).GetTaskByID(context.Background(), id)
	require.NoError(t, err)
	return task.Rating
}

func projectRating(t *testing.T, repo services.Repository, id string) *float64 {
	t.Helper()
	p, err := services.NewProjectService(repo).GetProjectByID(context.Background(), id)
	require.NoError(t, err)
	return p.AverageRating
}

func rate(t *testing.T, e *services.Engine, id string, rating int) models.RatingResult {
	t.Helper()
	res, err := e.RecordLeafRating(context.Background(), id, rating)
	require.NoError(t, err)
	require.True(t, res.LeafUpdated)
	return res
}
