package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cleanrate/app/controllers"
	"cleanrate/app/models"
	"cleanrate/app/services"
	"cleanrate/app/storage/memory"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	taskService := services.NewTaskService(store)
	router := mux.NewRouter()
	RegisterRoutes(router, Controllers{
		Tasks:    controllers.NewTaskController(taskService),
		Projects: controllers.NewProjectController(services.NewProjectService(store), taskService),
		Reviews:  controllers.NewReviewController(services.NewEngine(store, services.DefaultRetryPolicy())),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type projectBody struct {
	models.Project
	Tasks []models.Task `json:"tasks"`
}

type reviewBody struct {
	Review           models.Review `json:"review"`
	RatingPropagated bool          `json:"rating_propagated"`
}

type errBody struct {
	Error string `json:"error"`
}

func TestReviewFlow(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	var created projectBody
	status := do(t, http.MethodPost, srv.URL+"/projects", models.NewProject{
		Name: "Office",
		Tasks: []models.NewTask{
			{Title: "Lobby", Children: []models.NewTask{{Title: "Floor"}, {Title: "Desk"}}},
		},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, created.Tasks, 3)
	lobby, floor, desk := created.Tasks[0], created.Tasks[1], created.Tasks[2]

	var roots []models.Task
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/projects/"+created.ID+"/tasks", nil, &roots))
	require.Len(t, roots, 1)
	assert.Equal(t, lobby.ID, roots[0].ID)

	var children []models.Task
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/tasks/"+lobby.ID+"/children", nil, &children))
	assert.Len(t, children, 2)

	var siblings []models.Task
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/tasks/"+floor.ID+"/siblings", nil, &siblings))
	assert.Len(t, siblings, 2)

	var rb reviewBody
	status = do(t, http.MethodPost, srv.URL+"/tasks/"+floor.ID+"/reviews", map[string]any{"rating": 5, "comment": "clean"}, &rb)
	require.Equal(t, http.StatusCreated, status)
	assert.False(t, rb.RatingPropagated)
	assert.Equal(t, floor.ID, rb.Review.TaskID)

	status = do(t, http.MethodPost, srv.URL+"/tasks/"+desk.ID+"/reviews", map[string]any{"rating": 3}, &rb)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, rb.RatingPropagated)

	var project projectBody
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/projects/"+created.ID, nil, &project))
	require.NotNil(t, project.AverageRating)
	assert.Equal(t, 4.0, *project.AverageRating)

	var task models.Task
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/tasks/"+lobby.ID, nil, &task))
	require.NotNil(t, task.Rating)
	assert.Equal(t, 4.0, *task.Rating)

	var review models.Review
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/tasks/"+floor.ID+"/review", nil, &review))
	assert.Equal(t, "clean", review.Comment)
}

func TestReviewErrors(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	var created projectBody
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/projects", models.NewProject{
		Name:  "Flat",
		Tasks: []models.NewTask{{Title: "Rooms", Children: []models.NewTask{{Title: "Bedroom"}}}},
	}, &created))
	rooms, bedroom := created.Tasks[0], created.Tasks[1]

	var e errBody
	assert.Equal(t, http.StatusUnprocessableEntity,
		do(t, http.MethodPost, srv.URL+"/tasks/"+rooms.ID+"/reviews", map[string]any{"rating": 4}, &e))
	assert.Contains(t, e.Error, "only leaf tasks accept direct ratings")

	assert.Equal(t, http.StatusBadRequest,
		do(t, http.MethodPost, srv.URL+"/tasks/"+bedroom.ID+"/reviews", map[string]any{"rating": 9}, &e))

	assert.Equal(t, http.StatusCreated,
		do(t, http.MethodPost, srv.URL+"/tasks/"+bedroom.ID+"/reviews", map[string]any{"rating": 4}, nil))
	assert.Equal(t, http.StatusConflict,
		do(t, http.MethodPost, srv.URL+"/tasks/"+bedroom.ID+"/reviews", map[string]any{"rating": 2}, &e))

	assert.Equal(t, http.StatusNotFound,
		do(t, http.MethodPost, srv.URL+"/tasks/missing/reviews", map[string]any{"rating": 2}, &e))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/projects/missing", nil, &e))
	assert.Equal(t, http.StatusBadRequest,
		do(t, http.MethodPost, srv.URL+"/projects", map[string]any{"name": "empty"}, &e))
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", nil, nil))
}
