package models

import "time"

// Project owns a forest of tasks and carries their aggregate rating.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	AverageRating *float64  `json:"average_rating"`
	CreatedAt     time.Time `json:"created_at"`
	Version       int64     `json:"-"`
}

// NewTask describes a task, and its subtree, to create with a project.
type NewTask struct {
	Title    string    `json:"title"`
	Children []NewTask `json:"children,omitempty"`
}

// NewProject is the payload for creating a project together with its task forest.
type NewProject struct {
	Name  string    `json:"name"`
	Tasks []NewTask `json:"tasks"`
}
