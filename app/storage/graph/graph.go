// Package graph stores the task forest in Neo4j. Tasks point at their parent through
// HAS_PARENT and at their project through BELONGS_TO.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cleanrate/app/models"
	"cleanrate/app/services"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store is a Repository over a Neo4j database.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ services.Repository = (*Store)(nil)

// NewStore creates a new instance of Store. An empty database selects the server default.
func NewStore(driver neo4j.DriverWithContext, database string) *Store {
	return &Store{driver: driver, database: database}
}

// Atomically runs fn inside a managed write transaction.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(ctx, &graphTx{tx: tx})
	})
	return wrap(err)
}

// View runs fn inside a managed read transaction.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx services.Tx) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(ctx, &graphTx{tx: tx, readOnly: true})
	})
	return wrap(err)
}

// EnsureSchema creates the uniqueness constraints the store relies on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: s.database})
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("apply %q: %w", stmt, err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("apply %q: %w", stmt, err)
		}
	}
	return nil
}

var schemaStatements = []string{
	"CREATE CONSTRAINT project_id IF NOT EXISTS FOR (p:Project) REQUIRE p.id IS UNIQUE",
	"CREATE CONSTRAINT task_id IF NOT EXISTS FOR (t:Task) REQUIRE t.id IS UNIQUE",
	"CREATE CONSTRAINT review_task IF NOT EXISTS FOR (r:Review) REQUIRE r.task_id IS UNIQUE",
}

// wrap leaves domain errors alone and marks everything else as a store failure.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		services.ErrNotFound,
		services.ErrInvalidOperation,
		services.ErrInvalidInput,
		services.ErrConflict,
		services.ErrConcurrencyConflict,
		services.ErrStore,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == "Neo.ClientError.Schema.ConstraintValidationFailed" {
		return fmt.Errorf("%w: %w", services.ErrConflict, err)
	}
	return fmt.Errorf("%w: %w", services.ErrStore, err)
}

type graphTx struct {
	tx       neo4j.ManagedTransaction
	readOnly bool
}

var errReadOnly = errors.New("graph: write in read-only transaction")

const taskReturn = "RETURN t.id AS id, t.project_id AS project_id, p.id AS parent_id, " +
	"t.title AS title, t.position AS position, t.rating AS rating, t.version AS version"

func (g *graphTx) collect(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := g.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var records []*neo4j.Record
	for res.Next(ctx) {
		records = append(records, res.Record())
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (g *graphTx) GetTask(ctx context.Context, id string) (models.Task, error) {
	records, err := g.collect(ctx,
		"MATCH (t:Task {id: $id}) "+
			"OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+
			taskReturn,
		map[string]any{"id": id},
	)
	if err != nil {
		return models.Task{}, err
	}
	if len(records) == 0 {
		return models.Task{}, fmt.Errorf("task %s: %w", id, services.ErrNotFound)
	}
	return taskFromRecord(records[0]), nil
}

func (g *graphTx) TaskExists(ctx context.Context, id string) (bool, error) {
	return g.exists(ctx, "MATCH (t:Task {id: $id}) RETURN count(t) AS n", id)
}

func (g *graphTx) exists(ctx context.Context, cypher, id string) (bool, error) {
	records, err := g.collect(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return false, nil
	}
	n, _ := records[0].Values[0].(int64)
	return n > 0, nil
}

func (g *graphTx) InsertTask(ctx context.Context, task models.Task) error {
	if g.readOnly {
		return errReadOnly
	}
	records, err := g.collect(ctx,
		"MATCH (pr:Project {id: $project_id}) "+
			"CREATE (t:Task {id: $id, project_id: $project_id, title: $title, position: $position, rating: $rating, version: 0}) "+
			"CREATE (t)-[:BELONGS_TO]->(pr) "+
			"RETURN t.id",
		map[string]any{
			"id":         task.ID,
			"project_id": task.ProjectID,
			"title":      task.Title,
			"position":   int64(task.Position),
			"rating":     floatOrNil(task.Rating),
		},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("project %s: %w", task.ProjectID, services.ErrNotFound)
	}
	if task.IsRoot() {
		return nil
	}
	records, err = g.collect(ctx,
		"MATCH (child:Task {id: $childID}), (parent:Task {id: $parentID}) "+
			"CREATE (child)-[:HAS_PARENT]->(parent) "+
			"RETURN child.id",
		map[string]any{
			"childID":  task.ID,
			"parentID": *task.ParentID,
		},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("parent task %s: %w", *task.ParentID, services.ErrNotFound)
	}
	return nil
}

// SaveTask locks the node before comparing versions so a concurrent committed write is
// always observed.
func (g *graphTx) SaveTask(ctx context.Context, task models.Task) error {
	if g.readOnly {
		return errReadOnly
	}
	records, err := g.collect(ctx,
		"MATCH (t:Task {id: $id}) "+
			"SET t._lock = true REMOVE t._lock "+
			"WITH t "+
			"RETURN t.version = $version AS current",
		map[string]any{"id": task.ID, "version": task.Version},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("task %s: %w", task.ID, services.ErrNotFound)
	}
	if current, _ := records[0].Values[0].(bool); !current {
		return fmt.Errorf("task %s: %w", task.ID, services.ErrConcurrencyConflict)
	}
	_, err = g.collect(ctx,
		"MATCH (t:Task {id: $id}) "+
			"SET t.title = $title, t.position = $position, t.rating = $rating, t.version = t.version + 1 "+
			"RETURN t.version",
		map[string]any{
			"id":       task.ID,
			"title":    task.Title,
			"position": int64(task.Position),
			"rating":   floatOrNil(task.Rating),
		},
	)
	return err
}

// ChildrenOf write-locks the parent first in write transactions, so concurrent
// propagations through the same parent serialize.
func (g *graphTx) ChildrenOf(ctx context.Context, parentID string) ([]models.Task, error) {
	lock := ""
	if !g.readOnly {
		lock = "SET p._lock = true REMOVE p._lock "
	}
	records, err := g.collect(ctx,
		"MATCH (p:Task {id: $id}) "+lock+
			"WITH p "+
			"MATCH (t:Task)-[:HAS_PARENT]->(p) "+
			taskReturn+" ORDER BY position, id",
		map[string]any{"id": parentID},
	)
	if err != nil {
		return nil, err
	}
	return tasksFromRecords(records), nil
}

// RootTasksOf locks the project node the same way ChildrenOf locks a parent task.
func (g *graphTx) RootTasksOf(ctx context.Context, projectID string) ([]models.Task, error) {
	lock := ""
	if !g.readOnly {
		lock = "SET pr._lock = true REMOVE pr._lock "
	}
	records, err := g.collect(ctx,
		"MATCH (pr:Project {id: $id}) "+lock+
			"WITH pr "+
			"MATCH (t:Task)-[:BELONGS_TO]->(pr) "+
			"WHERE NOT (t)-[:HAS_PARENT]->(:Task) "+
			"OPTIONAL MATCH (t)-[:HAS_PARENT]->(p:Task) "+
			taskReturn+" ORDER BY position, id",
		map[string]any{"id": projectID},
	)
	if err != nil {
		return nil, err
	}
	return tasksFromRecords(records), nil
}

func (g *graphTx) GetProject(ctx context.Context, id string) (models.Project, error) {
	records, err := g.collect(ctx,
		"MATCH (pr:Project {id: $id}) "+
			"RETURN pr.id AS id, pr.name AS name, pr.average_rating AS average_rating, "+
			"pr.created_at AS created_at, pr.version AS version",
		map[string]any{"id": id},
	)
	if err != nil {
		return models.Project{}, err
	}
	if len(records) == 0 {
		return models.Project{}, fmt.Errorf("project %s: %w", id, services.ErrNotFound)
	}
	v := records[0].Values
	return models.Project{
		ID:            asString(v[0]),
		Name:          asString(v[1]),
		AverageRating: asFloatPtr(v[2]),
		CreatedAt:     asTime(v[3]),
		Version:       asInt(v[4]),
	}, nil
}

func (g *graphTx) ProjectExists(ctx context.Context, id string) (bool, error) {
	return g.exists(ctx, "MATCH (pr:Project {id: $id}) RETURN count(pr) AS n", id)
}

func (g *graphTx) InsertProject(ctx context.Context, project models.Project) error {
	if g.readOnly {
		return errReadOnly
	}
	_, err := g.collect(ctx,
		"CREATE (pr:Project {id: $id, name: $name, average_rating: $average_rating, created_at: $created_at, version: 0}) RETURN pr.id",
		map[string]any{
			"id":             project.ID,
			"name":           project.Name,
			"average_rating": floatOrNil(project.AverageRating),
			"created_at":     project.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	)
	return err
}

func (g *graphTx) SaveProject(ctx context.Context, project models.Project) error {
	if g.readOnly {
		return errReadOnly
	}
	records, err := g.collect(ctx,
		"MATCH (pr:Project {id: $id}) "+
			"SET pr._lock = true REMOVE pr._lock "+
			"WITH pr "+
			"RETURN pr.version = $version AS current",
		map[string]any{"id": project.ID, "version": project.Version},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("project %s: %w", project.ID, services.ErrNotFound)
	}
	if current, _ := records[0].Values[0].(bool); !current {
		return fmt.Errorf("project %s: %w", project.ID, services.ErrConcurrencyConflict)
	}
	_, err = g.collect(ctx,
		"MATCH (pr:Project {id: $id}) "+
			"SET pr.name = $name, pr.average_rating = $average_rating, pr.version = pr.version + 1 "+
			"RETURN pr.version",
		map[string]any{
			"id":             project.ID,
			"name":           project.Name,
			"average_rating": floatOrNil(project.AverageRating),
		},
	)
	return err
}

func (g *graphTx) GetReview(ctx context.Context, taskID string) (models.Review, error) {
	records, err := g.collect(ctx,
		"MATCH (r:Review {task_id: $id}) "+
			"RETURN r.id AS id, r.task_id AS task_id, r.rating AS rating, r.comment AS comment, "+
			"r.image_urls AS image_urls, r.created_at AS created_at",
		map[string]any{"id": taskID},
	)
	if err != nil {
		return models.Review{}, err
	}
	if len(records) == 0 {
		return models.Review{}, fmt.Errorf("review of task %s: %w", taskID, services.ErrNotFound)
	}
	v := records[0].Values
	return models.Review{
		ID:        asString(v[0]),
		TaskID:    asString(v[1]),
		Rating:    int(asInt(v[2])),
		Comment:   asString(v[3]),
		ImageURLs: asStrings(v[4]),
		CreatedAt: asTime(v[5]),
	}, nil
}

func (g *graphTx) ReviewExists(ctx context.Context, taskID string) (bool, error) {
	return g.exists(ctx, "MATCH (r:Review {task_id: $id}) RETURN count(r) AS n", taskID)
}

func (g *graphTx) InsertReview(ctx context.Context, review models.Review) error {
	if g.readOnly {
		return errReadOnly
	}
	exists, err := g.ReviewExists(ctx, review.TaskID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("task %s already reviewed: %w", review.TaskID, services.ErrConflict)
	}
	images := make([]any, 0, len(review.ImageURLs))
	for _, u := range review.ImageURLs {
		images = append(images, u)
	}
	records, err := g.collect(ctx,
		"MATCH (t:Task {id: $task_id}) "+
			"CREATE (r:Review {id: $id, task_id: $task_id, rating: $rating, comment: $comment, image_urls: $image_urls, created_at: $created_at}) "+
			"CREATE (r)-[:REVIEWS]->(t) "+
			"RETURN r.id",
		map[string]any{
			"id":         review.ID,
			"task_id":    review.TaskID,
			"rating":     int64(review.Rating),
			"comment":    review.Comment,
			"image_urls": images,
			"created_at": review.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("task %s: %w", review.TaskID, services.ErrNotFound)
	}
	return nil
}
