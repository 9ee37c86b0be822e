// Package sqlite provides a Repository backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cleanrate/app/models"
	"cleanrate/app/services"
)

// Store provides persistence for projects, tasks and reviews.
type Store struct {
	db *sql.DB
}

var _ services.Repository = (*Store)(nil)

// NewStore creates a store over an opened and migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Atomically runs fn in a transaction and commits if it succeeds.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return storeErr("begin", err)
	}
	if err := fn(ctx, &tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return storeErr("begin", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(ctx, &tx{tx: sqlTx, readOnly: true})
}

var errReadOnly = errors.New("sqlite: write in read-only transaction")

type tx struct {
	tx       *sql.Tx
	readOnly bool
}

const taskColumns = `id, project_id, parent_id, title, position, rating, version`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (models.Task, error) {
	var (
		task   models.Task
		parent sql.NullString
		rating sql.NullFloat64
	)
	if err := row.Scan(&task.ID, &task.ProjectID, &parent, &task.Title, &task.Position, &rating, &task.Version); err != nil {
		return models.Task{}, err
	}
	if parent.Valid {
		p := parent.String
		task.ParentID = &p
	}
	if rating.Valid {
		r := rating.Float64
		task.Rating = &r
	}
	return task, nil
}

func (t *tx) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return models.Task{}, storeErr(fmt.Sprintf("read task %s", id), err)
	}
	return task, nil
}

func (t *tx) TaskExists(ctx context.Context, id string) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM tasks WHERE id=?`, id)
}

func (t *tx) exists(ctx context.Context, query string, id string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(fmt.Sprintf("exists %s", id), err)
	}
	return true, nil
}

func (t *tx) InsertTask(ctx context.Context, task models.Task) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO tasks(id, project_id, parent_id, title, position, rating, version)
		VALUES(?, ?, ?, ?, ?, ?, 0)`,
		task.ID, task.ProjectID, nullableStringPtr(task.ParentID), task.Title, task.Position, nullableFloatPtr(task.Rating)); err != nil {
		return storeErr(fmt.Sprintf("insert task %s", task.ID), err)
	}
	return nil
}

func (t *tx) SaveTask(ctx context.Context, task models.Task) error {
	if t.readOnly {
		return errReadOnly
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE tasks SET title=?, position=?, rating=?, version=version+1 WHERE id=? AND version=?`,
		task.Title, task.Position, nullableFloatPtr(task.Rating), task.ID, task.Version)
	if err != nil {
		return storeErr(fmt.Sprintf("update task %s", task.ID), err)
	}
	return t.checkUpdated(ctx, res, "task", task.ID, `SELECT 1 FROM tasks WHERE id=?`)
}

func (t *tx) checkUpdated(ctx context.Context, res sql.Result, kind, id, existsQuery string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(fmt.Sprintf("update %s %s", kind, id), err)
	}
	if n == 1 {
		return nil
	}
	ok, err := t.exists(ctx, existsQuery, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, services.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", kind, id, services.ErrConcurrencyConflict)
}

func (t *tx) ChildrenOf(ctx context.Context, parentID string) ([]models.Task, error) {
	return t.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE parent_id=? ORDER BY position, id`, parentID)
}

func (t *tx) RootTasksOf(ctx context.Context, projectID string) ([]models.Task, error) {
	return t.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id=? AND parent_id IS NULL ORDER BY position, id`, projectID)
}

func (t *tx) queryTasks(ctx context.Context, query string, arg string) ([]models.Task, error) {
	rows, err := t.tx.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storeErr("query tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("scan task", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate tasks", err)
	}
	return tasks, nil
}

func (t *tx) GetProject(ctx context.Context, id string) (models.Project, error) {
	var (
		p         models.Project
		rating    sql.NullFloat64
		createdAt string
	)
	err := t.tx.QueryRowContext(ctx, `SELECT id, name, average_rating, created_at, version FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &rating, &createdAt, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return models.Project{}, storeErr(fmt.Sprintf("read project %s", id), err)
	}
	if rating.Valid {
		r := rating.Float64
		p.AverageRating = &r
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (t *tx) ProjectExists(ctx context.Context, id string) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM projects WHERE id=?`, id)
}

func (t *tx) InsertProject(ctx context.Context, project models.Project) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO projects(id, name, average_rating, created_at, version) VALUES(?, ?, ?, ?, 0)`,
		project.ID, project.Name, nullableFloatPtr(project.AverageRating), formatTime(project.CreatedAt)); err != nil {
		return storeErr(fmt.Sprintf("insert project %s", project.ID), err)
	}
	return nil
}

func (t *tx) SaveProject(ctx context.Context, project models.Project) error {
	if t.readOnly {
		return errReadOnly
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE projects SET name=?, average_rating=?, version=version+1 WHERE id=? AND version=?`,
		project.Name, nullableFloatPtr(project.AverageRating), project.ID, project.Version)
	if err != nil {
		return storeErr(fmt.Sprintf("update project %s", project.ID), err)
	}
	return t.checkUpdated(ctx, res, "project", project.ID, `SELECT 1 FROM projects WHERE id=?`)
}

func (t *tx) GetReview(ctx context.Context, taskID string) (models.Review, error) {
	var (
		r         models.Review
		comment   sql.NullString
		images    sql.NullString
		createdAt string
	)
	err := t.tx.QueryRowContext(ctx, `SELECT id, task_id, rating, comment, image_urls, created_at FROM reviews WHERE task_id=?`, taskID).
		Scan(&r.ID, &r.TaskID, &r.Rating, &comment, &images, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Review{}, fmt.Errorf("review of task %s: %w", taskID, services.ErrNotFound)
	}
	if err != nil {
		return models.Review{}, storeErr(fmt.Sprintf("read review of task %s", taskID), err)
	}
	r.Comment = comment.String
	if images.Valid && images.String != "" {
		if err := json.Unmarshal([]byte(images.String), &r.ImageURLs); err != nil {
			return models.Review{}, fmt.Errorf("decode review images: %w: %w", services.ErrStore, err)
		}
	}
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

func (t *tx) ReviewExists(ctx context.Context, taskID string) (bool, error) {
	return t.exists(ctx, `SELECT 1 FROM reviews WHERE task_id=?`, taskID)
}

func (t *tx) InsertReview(ctx context.Context, review models.Review) error {
	if t.readOnly {
		return errReadOnly
	}
	exists, err := t.ReviewExists(ctx, review.TaskID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("task %s already reviewed: %w", review.TaskID, services.ErrConflict)
	}
	var images any
	if len(review.ImageURLs) > 0 {
		data, err := json.Marshal(review.ImageURLs)
		if err != nil {
			return fmt.Errorf("encode review images: %w", err)
		}
		images = string(data)
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO reviews(id, task_id, rating, comment, image_urls, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		review.ID, review.TaskID, review.Rating, nullableString(review.Comment), images, formatTime(review.CreatedAt)); err != nil {
		return storeErr("insert review", err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}

func nullableFloatPtr(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
