package graph

import (
	"time"

	"cleanrate/app/models"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// taskFromRecord maps a row shaped by taskReturn.
func taskFromRecord(record *neo4j.Record) models.Task {
	v := record.Values
	var parentID *string
	if v[2] != nil {
		id := asString(v[2])
		parentID = &id
	}
	return models.Task{
		ID:        asString(v[0]),
		ProjectID: asString(v[1]),
		ParentID:  parentID,
		Title:     asString(v[3]),
		Position:  int(asInt(v[4])),
		Rating:    asFloatPtr(v[5]),
		Version:   asInt(v[6]),
	}
}

func tasksFromRecords(records []*neo4j.Record) []models.Task {
	tasks := make([]models.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, taskFromRecord(r))
	}
	return tasks
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asFloatPtr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int64:
		f := float64(n)
		return &f
	}
	return nil
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asTime(v any) time.Time {
	t, err := time.Parse(time.RFC3339Nano, asString(v))
	if err != nil {
		return time.Time{}
	}
	return t
}
