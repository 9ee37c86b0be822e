package controllers

import (
	"encoding/json"
	"net/http"

	"cleanrate/app/models"
	"cleanrate/app/services"

	"github.com/gorilla/mux"
)

// ReviewController handles review creation, which drives rating propagation.
type ReviewController struct {
	Engine *services.Engine
}

// NewReviewController creates a new ReviewController.
func NewReviewController(engine *services.Engine) *ReviewController {
	return &ReviewController{Engine: engine}
}

type createReviewRequest struct {
	Rating    int      `json:"rating"`
	Comment   string   `json:"comment"`
	ImageURLs []string `json:"image_urls"`
}

type createReviewResponse struct {
	Review           models.Review `json:"review"`
	RatingPropagated bool          `json:"rating_propagated"`
}

// CreateReview handles POST /tasks/{taskID}/reviews.
func (c *ReviewController) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request payload"})
		return
	}

	review, result, err := c.Engine.RecordReview(r.Context(), models.Review{
		TaskID:    mux.Vars(r)["taskID"],
		Rating:    req.Rating,
		Comment:   req.Comment,
		ImageURLs: req.ImageURLs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createReviewResponse{Review: review, RatingPropagated: result.Propagated})
}
