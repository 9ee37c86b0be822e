package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cleanrate/app/models"
	"cleanrate/app/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cleanrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestStore_ProjectLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	project, tasks, err := services.NewProjectService(s).CreateProject(ctx, models.NewProject{
		Name: "Villa",
		Tasks: []models.NewTask{
			{Title: "Ground floor", Children: []models.NewTask{{Title: "Hall"}, {Title: "Bath"}}},
			{Title: "Garden"},
		},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 4)
	ground, hall, bath, garden := tasks[0], tasks[1], tasks[2], tasks[3]

	taskSvc := services.NewTaskService(s)
	children, err := taskSvc.GetChildren(ctx, ground.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, hall.ID, children[0].ID)
	assert.Equal(t, bath.ID, children[1].ID)

	roots, err := taskSvc.GetRootTasks(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, ground.ID, roots[0].ID)

	e := services.NewEngine(s, services.DefaultRetryPolicy())
	_, res, err := e.RecordReview(ctx, models.Review{TaskID: hall.ID, Rating: 5, Comment: "shiny", ImageURLs: []string{"a.jpg", "b.jpg"}})
	require.NoError(t, err)
	assert.False(t, res.Propagated)

	res, err = e.RecordLeafRating(ctx, bath.ID, 2)
	require.NoError(t, err)
	assert.True(t, res.Propagated)

	got, err := taskSvc.GetTaskByID(ctx, ground.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 3.5, *got.Rating)

	p, err := services.NewProjectService(s).GetProjectByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Nil(t, p.AverageRating)

	_, err = e.RecordLeafRating(ctx, garden.ID, 4)
	require.NoError(t, err)
	p, err = services.NewProjectService(s).GetProjectByID(ctx, project.ID)
	require.NoError(t, err)
	require.NotNil(t, p.AverageRating)
	assert.Equal(t, 3.75, *p.AverageRating)

	review, err := taskSvc.GetReview(ctx, hall.ID)
	require.NoError(t, err)
	assert.Equal(t, "shiny", review.Comment)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, review.ImageURLs)

	_, _, err = e.RecordReview(ctx, models.Review{TaskID: hall.ID, Rating: 1})
	assert.ErrorIs(t, err, services.ErrConflict)
	_, err = e.RecordLeafRating(ctx, ground.ID, 1)
	assert.ErrorIs(t, err, services.ErrInvalidOperation)
}

func TestStore_StaleVersionConflicts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, tasks, err := services.NewProjectService(s).CreateProject(ctx, models.NewProject{
		Name:  "Flat",
		Tasks: []models.NewTask{{Title: "Kitchen"}},
	})
	require.NoError(t, err)

	err = s.Atomically(ctx, func(ctx context.Context, tx services.Tx) error {
		task, err := tx.GetTask(ctx, tasks[0].ID)
		require.NoError(t, err)
		require.NoError(t, tx.SaveTask(ctx, task))
		return tx.SaveTask(ctx, task)
	})
	assert.ErrorIs(t, err, services.ErrConcurrencyConflict)

	err = s.Atomically(ctx, func(ctx context.Context, tx services.Tx) error {
		return tx.SaveTask(ctx, models.Task{ID: "missing"})
	})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestStore_RollbackOnError(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.Atomically(ctx, func(ctx context.Context, tx services.Tx) error {
		require.NoError(t, tx.InsertProject(ctx, models.Project{ID: "p", Name: "p"}))
		return services.ErrInvalidInput
	})
	require.ErrorIs(t, err, services.ErrInvalidInput)

	err = s.View(ctx, func(ctx context.Context, tx services.Tx) error {
		ok, err := tx.ProjectExists(ctx, "p")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_TwoHandlesRateSiblingsConcurrently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	first, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	second, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	ctx := context.Background()
	policy := services.RetryPolicy{MaxAttempts: 10, InitialInterval: time.Millisecond, MaxInterval: 20 * time.Millisecond}
	engines := []*services.Engine{
		services.NewEngine(NewStore(first), policy),
		services.NewEngine(NewStore(second), policy),
	}

	for round := 0; round < 20; round++ {
		project, tasks, err := services.NewProjectService(NewStore(first)).CreateProject(ctx, models.NewProject{
			Name:  fmt.Sprintf("round %d", round),
			Tasks: []models.NewTask{{Title: "Lobby", Children: []models.NewTask{{Title: "Floor"}, {Title: "Desk"}}}},
		})
		require.NoError(t, err)
		leaves := []string{tasks[1].ID, tasks[2].ID}

		var wg sync.WaitGroup
		errs := make([]error, len(leaves))
		for i := range leaves {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = engines[i].RecordLeafRating(ctx, leaves[i], 2*i+3)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err, "round %d", round)
		}

		p, err := services.NewProjectService(NewStore(second)).GetProjectByID(ctx, project.ID)
		require.NoError(t, err)
		require.NotNil(t, p.AverageRating, "round %d", round)
		assert.Equal(t, 4.0, *p.AverageRating)
	}
}

func TestStoreErr(t *testing.T) {
	err := storeErr("update task t1", errors.New("disk I/O error"))
	assert.ErrorIs(t, err, services.ErrStore)
	assert.NotErrorIs(t, err, services.ErrConcurrencyConflict)
}
