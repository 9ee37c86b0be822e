package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cleanrate/app/models"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	MinRating = 1
	MaxRating = 5
)

// RetryPolicy bounds how often a transaction is retried after ErrConcurrencyConflict.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy allows three attempts with a short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
	}
}

// Engine records leaf ratings and propagates averages up the task tree to the project.
type Engine struct {
	repo  Repository
	retry RetryPolicy
	now   func() time.Time
}

// NewEngine creates a propagation engine over repo.
func NewEngine(repo Repository, retry RetryPolicy) *Engine {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &Engine{repo: repo, retry: retry, now: time.Now}
}

// RecordLeafRating sets the rating of a leaf task and propagates it upward. The leaf write
// and every ancestor update commit together.
func (e *Engine) RecordLeafRating(ctx context.Context, taskID string, rating int) (models.RatingResult, error) {
	if err := validateRating(rating); err != nil {
		return models.RatingResult{}, err
	}
	var result models.RatingResult
	err := e.atomically(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = e.rateLeaf(ctx, tx, taskID, rating)
		return err
	})
	if err != nil {
		return models.RatingResult{}, err
	}
	return result, nil
}

// RecordReview stores review against its leaf task and propagates its rating in the same
// transaction.
func (e *Engine) RecordReview(ctx context.Context, review models.Review) (models.Review, models.RatingResult, error) {
	if err := validateRating(review.Rating); err != nil {
		return models.Review{}, models.RatingResult{}, err
	}
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = e.now().UTC()
	}

	var result models.RatingResult
	err := e.atomically(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = e.rateLeaf(ctx, tx, review.TaskID, review.Rating)
		if err != nil {
			return err
		}
		return tx.InsertReview(ctx, review)
	})
	if err != nil {
		return models.Review{}, models.RatingResult{}, err
	}
	return review, result, nil
}

func (e *Engine) atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialInterval
	b.MaxInterval = e.retry.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := e.repo.Atomically(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrConcurrencyConflict) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(e.retry.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("wait", wait).Msg("rating transaction conflicted, retrying")
		}),
	)
	return err
}

func (e *Engine) rateLeaf(ctx context.Context, tx Tx, taskID string, rating int) (models.RatingResult, error) {
	task, err := tx.GetTask(ctx, taskID)
	if err != nil {
		return models.RatingResult{}, err
	}
	leaf, err := NewHierarchy(tx).IsLeaf(ctx, taskID)
	if err != nil {
		return models.RatingResult{}, err
	}
	if !leaf {
		return models.RatingResult{}, fmt.Errorf("task %s: only leaf tasks accept direct ratings: %w", taskID, ErrInvalidOperation)
	}
	reviewed, err := tx.ReviewExists(ctx, taskID)
	if err != nil {
		return models.RatingResult{}, err
	}
	if reviewed || task.IsRated() {
		return models.RatingResult{}, fmt.Errorf("task %s: task already reviewed: %w", taskID, ErrConflict)
	}

	value := float64(rating)
	task.Rating = &value
	if err := tx.SaveTask(ctx, task); err != nil {
		return models.RatingResult{}, err
	}
	task.Version++

	result, err := e.propagateUpward(ctx, tx, task)
	if err != nil {
		return models.RatingResult{}, err
	}
	result.LeafUpdated = true
	return result, nil
}

// propagateUpward walks from task towards the project, recomputing each ancestor whose
// children are all rated. The walk stops at the first level with an unrated child.
func (e *Engine) propagateUpward(ctx context.Context, tx Tx, task models.Task) (models.RatingResult, error) {
	var result models.RatingResult
	visited := map[string]struct{}{task.ID: {}}
	current := task

	for !current.IsRoot() {
		result.Steps++
		parent, err := tx.GetTask(ctx, *current.ParentID)
		if err != nil {
			return result, fmt.Errorf("load parent of %s: %w", current.ID, err)
		}
		if _, seen := visited[parent.ID]; seen {
			return result, fmt.Errorf("task %s: parent links form a cycle: %w", parent.ID, ErrInvalidOperation)
		}
		visited[parent.ID] = struct{}{}

		siblings, err := tx.ChildrenOf(ctx, parent.ID)
		if err != nil {
			return result, err
		}
		if !AllRated(siblings) {
			log.Debug().Str("task_id", parent.ID).Msg("propagation halted: unrated children")
			return result, nil
		}
		avg, err := Average(Ratings(siblings))
		if err != nil {
			return result, err
		}
		if parent.Rating == nil || *parent.Rating != avg {
			parent.Rating = &avg
			if err := tx.SaveTask(ctx, parent); err != nil {
				return result, err
			}
			parent.Version++
			result.Propagated = true
		}
		log.Debug().Str("task_id", parent.ID).Float64("rating", avg).Msg("task rating propagated")
		current = parent
	}

	result.Steps++
	roots, err := NewHierarchy(tx).RootTasksOf(ctx, current.ProjectID)
	if err != nil {
		return result, err
	}
	if !AllRated(roots) {
		return result, nil
	}
	avg, err := Average(Ratings(roots))
	if err != nil {
		return result, err
	}
	project, err := tx.GetProject(ctx, current.ProjectID)
	if err != nil {
		return result, err
	}
	if project.AverageRating != nil && *project.AverageRating == avg {
		return result, nil
	}
	project.AverageRating = &avg
	if err := tx.SaveProject(ctx, project); err != nil {
		return result, err
	}
	result.Propagated = true
	log.Info().Str("project_id", project.ID).Float64("rating", avg).Msg("project rating set")
	return result, nil
}

func validateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("rating %d outside %d-%d: %w", rating, MinRating, MaxRating, ErrInvalidInput)
	}
	return nil
}
