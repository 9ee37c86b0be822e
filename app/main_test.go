package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cleanrate/app/models"
	"cleanrate/app/services"
	"cleanrate/app/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cleanrate.db")

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	project, tasks, err := services.NewProjectService(sqlite.NewStore(db)).CreateProject(context.Background(), models.NewProject{
		Name:  "Shop",
		Tasks: []models.NewTask{{Title: "Counter"}},
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfgPath := filepath.Join(dir, "cleanrate.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("storage:\n  driver: sqlite\n  sqlite:\n    path: %s\n", dbPath)), 0o644))

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "rate", tasks[0].ID, "4"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "propagated: true")

	db, err = sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	p, err := services.NewProjectService(sqlite.NewStore(db)).GetProjectByID(context.Background(), project.ID)
	require.NoError(t, err)
	require.NotNil(t, p.AverageRating)
	assert.Equal(t, 4.0, *p.AverageRating)
}

func TestRateCommand_RejectsNonInteger(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"rate", "task", "five"})
	assert.Error(t, cmd.Execute())
}
