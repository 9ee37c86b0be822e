package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cleanrate/app/services"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskFromRecord(t *testing.T) {
	t.Parallel()

	rec := &neo4j.Record{
		Keys:   []string{"id", "project_id", "parent_id", "title", "position", "rating", "version"},
		Values: []any{"t1", "p1", "t0", "Hall", int64(2), 4.5, int64(3)},
	}
	task := taskFromRecord(rec)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "p1", task.ProjectID)
	require.NotNil(t, task.ParentID)
	assert.Equal(t, "t0", *task.ParentID)
	assert.Equal(t, 2, task.Position)
	require.NotNil(t, task.Rating)
	assert.Equal(t, 4.5, *task.Rating)
	assert.Equal(t, int64(3), task.Version)

	root := taskFromRecord(&neo4j.Record{Values: []any{"t0", "p1", nil, "Floor", int64(0), nil, int64(0)}})
	assert.True(t, root.IsRoot())
	assert.Nil(t, root.Rating)
}

func TestAsStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a.jpg", "b.jpg"}, asStrings([]any{"a.jpg", "b.jpg"}))
	assert.Nil(t, asStrings(nil))
	assert.Nil(t, asStrings([]any{}))
}

func TestWrap(t *testing.T) {
	t.Parallel()

	assert.NoError(t, wrap(nil))

	notFound := fmt.Errorf("task x: %w", services.ErrNotFound)
	assert.Same(t, notFound, wrap(notFound))

	driverErr := errors.New("connection reset")
	assert.ErrorIs(t, wrap(driverErr), services.ErrStore)

	assert.ErrorIs(t, wrap(context.Canceled), context.Canceled)
	assert.NotErrorIs(t, wrap(context.Canceled), services.ErrStore)
}
