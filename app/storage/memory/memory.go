// Package memory is an in-process Repository. Transactions stage their writes and record
// the version of every row they read; commit fails with ErrConcurrencyConflict when any of
// those rows changed in the meantime.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cleanrate/app/models"
	"cleanrate/app/services"
)

var errReadOnly = errors.New("memory: write in read-only transaction")

// Store holds tasks, projects and reviews in memory.
type Store struct {
	mu       sync.RWMutex
	tasks    map[string]models.Task
	projects map[string]models.Project
	reviews  map[string]models.Review // keyed by task id
	children map[string][]string      // parent id -> child ids
	roots    map[string][]string      // project id -> root task ids
}

var _ services.Repository = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		tasks:    map[string]models.Task{},
		projects: map[string]models.Project{},
		reviews:  map[string]models.Review{},
		children: map[string][]string{},
		roots:    map[string][]string{},
	}
}

// Atomically runs fn and commits its writes if every row it observed is unchanged.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s, false)
	if err := fn(ctx, t); err != nil {
		return err
	}
	return s.commit(t)
}

// View runs fn against committed state. Writes fail.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, newTx(s, true))
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, v := range t.taskReads {
		cur, ok := s.tasks[id]
		if !ok || cur.Version != v {
			return fmt.Errorf("task %s changed: %w", id, services.ErrConcurrencyConflict)
		}
	}
	for id, v := range t.projectReads {
		cur, ok := s.projects[id]
		if !ok || cur.Version != v {
			return fmt.Errorf("project %s changed: %w", id, services.ErrConcurrencyConflict)
		}
	}
	for _, id := range t.insertedTasks {
		if _, ok := s.tasks[id]; ok {
			return fmt.Errorf("task %s already exists: %w", id, services.ErrConflict)
		}
	}
	for _, id := range t.insertedProjects {
		if _, ok := s.projects[id]; ok {
			return fmt.Errorf("project %s already exists: %w", id, services.ErrConflict)
		}
	}
	for taskID := range t.reviews {
		if _, ok := s.reviews[taskID]; ok {
			return fmt.Errorf("review of task %s: %w", taskID, services.ErrConcurrencyConflict)
		}
	}

	for id, p := range t.projects {
		s.projects[id] = p
	}
	for _, id := range t.insertedTasks {
		task := t.tasks[id]
		if task.IsRoot() {
			s.roots[task.ProjectID] = append(s.roots[task.ProjectID], id)
		} else {
			s.children[*task.ParentID] = append(s.children[*task.ParentID], id)
		}
	}
	for id, task := range t.tasks {
		s.tasks[id] = task
	}
	for taskID, r := range t.reviews {
		s.reviews[taskID] = r
	}
	return nil
}

type tx struct {
	s        *Store
	readOnly bool

	taskReads    map[string]int64
	projectReads map[string]int64

	tasks            map[string]models.Task
	insertedTasks    []string
	projects         map[string]models.Project
	insertedProjects []string
	reviews          map[string]models.Review
}

func newTx(s *Store, readOnly bool) *tx {
	return &tx{
		s:            s,
		readOnly:     readOnly,
		taskReads:    map[string]int64{},
		projectReads: map[string]int64{},
		tasks:        map[string]models.Task{},
		projects:     map[string]models.Project{},
		reviews:      map[string]models.Review{},
	}
}

// committedTask reads a task from the store and remembers its version.
func (t *tx) committedTask(id string) (models.Task, bool) {
	t.s.mu.RLock()
	task, ok := t.s.tasks[id]
	t.s.mu.RUnlock()
	if !ok {
		return models.Task{}, false
	}
	t.observeTask(task)
	return cloneTask(task), true
}

func (t *tx) observeTask(task models.Task) {
	if _, seen := t.taskReads[task.ID]; !seen {
		t.taskReads[task.ID] = task.Version
	}
}

func (t *tx) visibleTask(id string) (models.Task, bool) {
	if task, ok := t.tasks[id]; ok {
		return cloneTask(task), true
	}
	return t.committedTask(id)
}

func (t *tx) GetTask(_ context.Context, id string) (models.Task, error) {
	task, ok := t.visibleTask(id)
	if !ok {
		return models.Task{}, fmt.Errorf("task %s: %w", id, services.ErrNotFound)
	}
	return task, nil
}

func (t *tx) TaskExists(_ context.Context, id string) (bool, error) {
	_, ok := t.visibleTask(id)
	return ok, nil
}

func (t *tx) InsertTask(_ context.Context, task models.Task) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.visibleTask(task.ID); ok {
		return fmt.Errorf("task %s already exists: %w", task.ID, services.ErrConflict)
	}
	task.Version = 0
	t.tasks[task.ID] = cloneTask(task)
	t.insertedTasks = append(t.insertedTasks, task.ID)
	return nil
}

func (t *tx) SaveTask(_ context.Context, task models.Task) error {
	if t.readOnly {
		return errReadOnly
	}
	cur, ok := t.visibleTask(task.ID)
	if !ok {
		return fmt.Errorf("task %s: %w", task.ID, services.ErrNotFound)
	}
	if cur.Version != task.Version {
		return fmt.Errorf("task %s at version %d, have %d: %w", task.ID, cur.Version, task.Version, services.ErrConcurrencyConflict)
	}
	task.Version++
	t.tasks[task.ID] = cloneTask(task)
	return nil
}

func (t *tx) ChildrenOf(_ context.Context, parentID string) ([]models.Task, error) {
	t.s.mu.RLock()
	ids := append([]string(nil), t.s.children[parentID]...)
	t.s.mu.RUnlock()
	return t.collect(ids, func(task models.Task) bool {
		return !task.IsRoot() && *task.ParentID == parentID
	}), nil
}

func (t *tx) RootTasksOf(_ context.Context, projectID string) ([]models.Task, error) {
	t.s.mu.RLock()
	ids := append([]string(nil), t.s.roots[projectID]...)
	t.s.mu.RUnlock()
	return t.collect(ids, func(task models.Task) bool {
		return task.IsRoot() && task.ProjectID == projectID
	}), nil
}

// collect resolves committed ids through the transaction's staged writes and adds tasks
// inserted by this transaction that match.
func (t *tx) collect(ids []string, match func(models.Task) bool) []models.Task {
	out := make([]models.Task, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if task, ok := t.visibleTask(id); ok {
			out = append(out, task)
			seen[id] = struct{}{}
		}
	}
	for _, id := range t.insertedTasks {
		if _, ok := seen[id]; ok {
			continue
		}
		if task := t.tasks[id]; match(task) {
			out = append(out, cloneTask(task))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (t *tx) visibleProject(id string) (models.Project, bool) {
	if p, ok := t.projects[id]; ok {
		return cloneProject(p), true
	}
	t.s.mu.RLock()
	p, ok := t.s.projects[id]
	t.s.mu.RUnlock()
	if !ok {
		return models.Project{}, false
	}
	if _, seen := t.projectReads[id]; !seen {
		t.projectReads[id] = p.Version
	}
	return cloneProject(p), true
}

func (t *tx) GetProject(_ context.Context, id string) (models.Project, error) {
	p, ok := t.visibleProject(id)
	if !ok {
		return models.Project{}, fmt.Errorf("project %s: %w", id, services.ErrNotFound)
	}
	return p, nil
}

func (t *tx) ProjectExists(_ context.Context, id string) (bool, error) {
	_, ok := t.visibleProject(id)
	return ok, nil
}

func (t *tx) InsertProject(_ context.Context, project models.Project) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.visibleProject(project.ID); ok {
		return fmt.Errorf("project %s already exists: %w", project.ID, services.ErrConflict)
	}
	project.Version = 0
	t.projects[project.ID] = cloneProject(project)
	t.insertedProjects = append(t.insertedProjects, project.ID)
	return nil
}

func (t *tx) SaveProject(_ context.Context, project models.Project) error {
	if t.readOnly {
		return errReadOnly
	}
	cur, ok := t.visibleProject(project.ID)
	if !ok {
		return fmt.Errorf("project %s: %w", project.ID, services.ErrNotFound)
	}
	if cur.Version != project.Version {
		return fmt.Errorf("project %s at version %d, have %d: %w", project.ID, cur.Version, project.Version, services.ErrConcurrencyConflict)
	}
	project.Version++
	t.projects[project.ID] = cloneProject(project)
	return nil
}

func (t *tx) GetReview(_ context.Context, taskID string) (models.Review, error) {
	if r, ok := t.reviews[taskID]; ok {
		return cloneReview(r), nil
	}
	t.s.mu.RLock()
	r, ok := t.s.reviews[taskID]
	t.s.mu.RUnlock()
	if !ok {
		return models.Review{}, fmt.Errorf("review of task %s: %w", taskID, services.ErrNotFound)
	}
	return cloneReview(r), nil
}

func (t *tx) ReviewExists(ctx context.Context, taskID string) (bool, error) {
	_, err := t.GetReview(ctx, taskID)
	if errors.Is(err, services.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *tx) InsertReview(ctx context.Context, review models.Review) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.visibleTask(review.TaskID); !ok {
		return fmt.Errorf("task %s: %w", review.TaskID, services.ErrNotFound)
	}
	exists, err := t.ReviewExists(ctx, review.TaskID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("task %s already reviewed: %w", review.TaskID, services.ErrConflict)
	}
	t.reviews[review.TaskID] = cloneReview(review)
	return nil
}

func cloneTask(t models.Task) models.Task {
	if t.ParentID != nil {
		p := *t.ParentID
		t.ParentID = &p
	}
	if t.Rating != nil {
		r := *t.Rating
		t.Rating = &r
	}
	return t
}

func cloneProject(p models.Project) models.Project {
	if p.AverageRating != nil {
		r := *p.AverageRating
		p.AverageRating = &r
	}
	return p
}

func cloneReview(r models.Review) models.Review {
	r.ImageURLs = append([]string(nil), r.ImageURLs...)
	return r
}
