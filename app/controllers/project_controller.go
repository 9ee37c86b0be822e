package controllers

import (
	"encoding/json"
	"net/http"

	"cleanrate/app/models"
	"cleanrate/app/services"

	"github.com/gorilla/mux"
)

// ProjectController handles HTTP requests for projects.
type ProjectController struct {
	Service *services.ProjectService
	Tasks   *services.TaskService
}

// NewProjectController creates a new ProjectController.
func NewProjectController(service *services.ProjectService, tasks *services.TaskService) *ProjectController {
	return &ProjectController{Service: service, Tasks: tasks}
}

type projectResponse struct {
	models.Project
	Tasks []models.Task `json:"tasks,omitempty"`
}

// CreateProject handles POST /projects.
func (c *ProjectController) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in models.NewProject
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request payload"})
		return
	}

	project, tasks, err := c.Service.CreateProject(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Project: project, Tasks: tasks})
}

// GetProjectByID handles GET /projects/{projectID}.
func (c *ProjectController) GetProjectByID(w http.ResponseWriter, r *http.Request) {
	project, err := c.Service.GetProjectByID(r.Context(), mux.Vars(r)["projectID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: project})
}

// GetRootTasks handles GET /projects/{projectID}/tasks.
func (c *ProjectController) GetRootTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Tasks.GetRootTasks(r.Context(), mux.Vars(r)["projectID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}
