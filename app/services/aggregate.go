package services

import (
	"errors"
	"sort"

	"cleanrate/app/models"
)

// ErrNoRatings is returned by Average for an empty input.
var ErrNoRatings = errors.New("average of no ratings")

// Average returns the arithmetic mean of ratings. Values are summed in ascending order so
// the result is the same for any permutation of the input.
func Average(ratings []float64) (float64, error) {
	if len(ratings) == 0 {
		return 0, ErrNoRatings
	}
	sorted := make([]float64, len(ratings))
	copy(sorted, ratings)
	sort.Float64s(sorted)

	var sum float64
	for _, r := range sorted {
		sum += r
	}
	return sum / float64(len(sorted)), nil
}

// AllRated reports whether every task has a rating. An empty set is not rated.
func AllRated(tasks []models.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.IsRated() {
			return false
		}
	}
	return true
}

// Ratings collects the ratings of tasks, skipping unrated ones.
func Ratings(tasks []models.Task) []float64 {
	out := make([]float64, 0, len(tasks))
	for _, t := range tasks {
		if t.Rating != nil {
			out = append(out, *t.Rating)
		}
	}
	return out
}
