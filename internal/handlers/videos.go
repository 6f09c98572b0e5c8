package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/media"
	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/response"
)

// VideoHandler provides video publishing and browsing endpoints.
type VideoHandler struct {
	Videos   VideoStore
	Profiles ProfileStore
	Media    MediaUploader
	TempDir  string
	NowFunc  func() time.Time
}

var listSortFields = map[string]bool{
	"createdAt": true,
	"views":     true,
	"duration":  true,
	"title":     true,
}

type publishVideoRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
}

type updateVideoRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string `json:"description" validate:"omitnil,min=1,max=5000"`
}

// List handles GET /videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	query, err := parseVideoQuery(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	query.ViewerID = viewer.ID

	page, err := h.Videos.List(ctx, query)
	if err != nil {
		response.Error(ctx, w, apperr.Internal("Failed to fetch videos", err))
		return
	}

	response.JSON(ctx, w, http.StatusOK, page, "Videos fetched successfully")
}

func parseVideoQuery(r *http.Request) (models.VideoQuery, error) {
	values := r.URL.Query()
	q := models.VideoQuery{SortDesc: true}

	positive := func(name string) (int, error) {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, apperr.BadRequest(name + " must be a positive integer")
		}
		return n, nil
	}

	var err error
	if q.Page, err = positive("page"); err != nil {
		return q, err
	}
	if q.Limit, err = positive("limit"); err != nil {
		return q, err
	}

	q.Search = strings.TrimSpace(values.Get("query"))

	if sortBy := strings.TrimSpace(values.Get("sortBy")); sortBy != "" {
		if !listSortFields[sortBy] {
			return q, apperr.BadRequest("sortBy must be one of: createdAt, views, duration, title")
		}
		q.SortBy = sortBy
	}

	switch strings.ToLower(strings.TrimSpace(values.Get("sortType"))) {
	case "", "desc":
	case "asc":
		q.SortDesc = false
	default:
		return q, apperr.BadRequest("sortType must be asc or desc")
	}

	if owner := strings.TrimSpace(values.Get("userId")); owner != "" {
		if !validUUID(owner) {
			return q, apperr.BadRequest("userId is invalid")
		}
		q.OwnerID = owner
	}

	return q, nil
}

// Publish handles POST /videos (multipart: videoFile and thumbnail required).
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	cleanup, err := parseMultipart(r)
	defer cleanup()
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	req := publishVideoRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	trim(&req.Title, &req.Description)
	if err := validateStruct(req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	videoPath, err := saveFormFile(r, "videoFile", h.TempDir)
	if err != nil {
		response.Error(ctx, w, apperr.Internal("Failed to read video file", err))
		return
	}
	thumbPath, err := saveFormFile(r, "thumbnail", h.TempDir)
	if err != nil {
		discard(videoPath)
		response.Error(ctx, w, apperr.Internal("Failed to read thumbnail", err))
		return
	}
	if videoPath == "" || thumbPath == "" {
		discard(videoPath, thumbPath)
		response.Error(ctx, w, apperr.BadRequest("Video file and thumbnail are required"))
		return
	}

	videoAsset, err := h.Media.Upload(ctx, videoPath, media.KindVideo)
	if err != nil {
		discard(thumbPath)
		response.Error(ctx, w, uploadError(r, err, "Error while uploading video file"))
		return
	}
	thumbAsset, err := h.Media.Upload(ctx, thumbPath, media.KindImage)
	if err != nil {
		response.Error(ctx, w, uploadError(r, err, "Error while uploading thumbnail"))
		return
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		VideoFile:   videoAsset.URL,
		Thumbnail:   thumbAsset.URL,
		Title:       req.Title,
		Description: req.Description,
		Duration:    videoAsset.Duration,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Videos.Create(ctx, video); err != nil {
		response.Error(ctx, w, storeError(err, "User not found", "Video already exists"))
		return
	}

	logger.Info("video published", "video_id", video.ID, "duration", video.Duration)
	response.JSON(ctx, w, http.StatusCreated, video, "Video published successfully")
}

// Get handles GET /videos/{videoId}. A successful read by a signed in viewer
// also records watch history and bumps the view count.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	video, err := h.findVideo(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if !video.IsPublished && video.OwnerID != viewer.ID {
		response.Error(ctx, w, apperr.NotFound("Video not found"))
		return
	}

	logger := logging.FromContext(ctx)
	if h.Profiles != nil {
		if err := h.Profiles.RecordWatch(ctx, viewer.ID, video.ID); err != nil {
			logger.Warn("record watch history failed", "video_id", video.ID, "error", err)
		}
	}
	if err := h.Videos.IncrementViews(ctx, video.ID); err != nil {
		logger.Warn("increment views failed", "video_id", video.ID, "error", err)
	} else {
		video.Views++
	}

	response.JSON(ctx, w, http.StatusOK, video, "Video fetched successfully")
}

// Update handles PATCH /videos/{videoId}. Accepts JSON or multipart; a
// multipart request may carry a new thumbnail.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.ownedVideo(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var (
		req       updateVideoRequest
		thumbPath string
	)
	if isMultipart(r) {
		cleanup, err := parseMultipart(r)
		defer cleanup()
		if err != nil {
			response.Error(ctx, w, err)
			return
		}
		req.Title = formField(r, "title")
		req.Description = formField(r, "description")
		if thumbPath, err = saveFormFile(r, "thumbnail", h.TempDir); err != nil {
			response.Error(ctx, w, apperr.Internal("Failed to read thumbnail", err))
			return
		}
	} else if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		response.Error(ctx, w, err)
		return
	}

	if req.Title != nil {
		trim(req.Title)
	}
	if req.Description != nil {
		trim(req.Description)
	}
	if req.Title == nil && req.Description == nil && thumbPath == "" {
		response.Error(ctx, w, apperr.BadRequest("At least one of title, description or thumbnail is required"))
		return
	}
	if err := validateStruct(req); err != nil {
		discard(thumbPath)
		response.Error(ctx, w, err)
		return
	}

	update := models.VideoUpdate{Title: req.Title, Description: req.Description}
	if thumbPath != "" {
		asset, err := h.Media.Upload(ctx, thumbPath, media.KindImage)
		if err != nil {
			response.Error(ctx, w, uploadError(r, err, "Error while uploading thumbnail"))
			return
		}
		update.Thumbnail = &asset.URL
	}

	updated, err := h.Videos.Update(ctx, video.ID, update)
	if err != nil {
		response.Error(ctx, w, storeError(err, "Video not found", ""))
		return
	}

	response.JSON(ctx, w, http.StatusOK, updated, "Video updated successfully")
}

// Delete handles DELETE /videos/{videoId} and returns the removed record.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.ownedVideo(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		response.Error(ctx, w, storeError(err, "Video not found", ""))
		return
	}

	logging.FromContext(ctx).Info("video deleted", "video_id", video.ID)
	response.JSON(ctx, w, http.StatusOK, video, "Video deleted successfully")
}

// TogglePublish handles PATCH /videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.ownedVideo(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	updated, err := h.Videos.TogglePublish(ctx, video.ID)
	if err != nil {
		response.Error(ctx, w, storeError(err, "Video not found", ""))
		return
	}

	response.JSON(ctx, w, http.StatusOK, updated, "Video publish status toggled successfully")
}

func (h VideoHandler) findVideo(r *http.Request) (models.Video, error) {
	id := chi.URLParam(r, "videoId")
	if !validUUID(id) {
		return models.Video{}, apperr.NotFound("Video not found")
	}
	video, err := h.Videos.FindByID(r.Context(), id)
	if err != nil {
		return models.Video{}, storeError(err, "Video not found", "")
	}
	return video, nil
}

// ownedVideo loads the addressed video and checks the caller owns it.
func (h VideoHandler) ownedVideo(r *http.Request) (models.Video, error) {
	user, err := currentUser(r)
	if err != nil {
		return models.Video{}, err
	}
	video, err := h.findVideo(r)
	if err != nil {
		return models.Video{}, err
	}
	if video.OwnerID != user.ID {
		return models.Video{}, apperr.Forbidden("You are not allowed to modify this video")
	}
	return video, nil
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formField returns a pointer to the form value, or nil when the field was not sent.
func formField(r *http.Request, name string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
