package models

import "time"

// Review is the single, immutable rating of a leaf task.
type Review struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	ImageURLs []string  `json:"image_urls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingResult reports what a leaf rating changed.
type RatingResult struct {
	LeafUpdated bool `json:"leaf_updated"`
	Propagated  bool `json:"propagated"`
	// Steps counts the ancestor levels examined, the project level included.
	Steps int `json:"-"`
}
