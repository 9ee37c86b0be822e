package models

// Task is a node in a project's task forest. A nil ParentID marks a root task.
type Task struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	ParentID  *string  `json:"parent_id"`
	Title     string   `json:"title"`
	Position  int      `json:"position"`
	Rating    *float64 `json:"rating"`
	Version   int64    `json:"-"`
}

// IsRoot reports whether the task hangs directly off its project.
func (t Task) IsRoot() bool {
	return t.ParentID == nil || *t.ParentID == ""
}

// IsRated reports whether the task has a rating.
func (t Task) IsRated() bool {
	return t.Rating != nil
}
