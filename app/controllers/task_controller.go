package controllers

import (
	"net/http"

	"cleanrate/app/services"

	"github.com/gorilla/mux"
)

// TaskController handles HTTP requests for tasks.
type TaskController struct {
	Service *services.TaskService
}

// NewTaskController creates a new TaskController.
func NewTaskController(service *services.TaskService) *TaskController {
	return &TaskController{Service: service}
}

// GetTaskByID handles GET /tasks/{taskID}.
func (c *TaskController) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	task, err := c.Service.GetTaskByID(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetChildren handles GET /tasks/{taskID}/children.
func (c *TaskController) GetChildren(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Service.GetChildren(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetSiblings handles GET /tasks/{taskID}/siblings.
func (c *TaskController) GetSiblings(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Service.GetSiblings(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetReview handles GET /tasks/{taskID}/review.
func (c *TaskController) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := c.Service.GetReview(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}
