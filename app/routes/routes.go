package routes

import (
	"net/http"
	"time"

	"cleanrate/app/controllers"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Controllers groups the handlers the router dispatches to.
type Controllers struct {
	Tasks    *controllers.TaskController
	Projects *controllers.ProjectController
	Reviews  *controllers.ReviewController
}

// RegisterRoutes sets up all routes for the application.
func RegisterRoutes(router *mux.Router, c Controllers) {
	router.Use(accessLog)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/projects", c.Projects.CreateProject).Methods(http.MethodPost)
	router.HandleFunc("/projects/{projectID}", c.Projects.GetProjectByID).Methods(http.MethodGet)
	router.HandleFunc("/projects/{projectID}/tasks", c.Projects.GetRootTasks).Methods(http.MethodGet)

	router.HandleFunc("/tasks/{taskID}", c.Tasks.GetTaskByID).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/children", c.Tasks.GetChildren).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/siblings", c.Tasks.GetSiblings).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/review", c.Tasks.GetReview).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/reviews", c.Reviews.CreateReview).Methods(http.MethodPost)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
