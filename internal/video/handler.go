package video

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"viewsphere/internal/media"
	"viewsphere/internal/web"
)

const (
	maxJSONBodyBytes  = 1 << 20
	maxVideoSizeBytes = 200 << 20
	maxImageSizeBytes = 10 << 20
	defaultPageSize   = 20
	maxPageSize       = 100
)

type Handler struct {
	repo     *Repository
	uploader media.Uploader
}

func NewHandler(repo *Repository, uploader media.Uploader) *Handler {
	return &Handler{repo: repo, uploader: uploader}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)

	videos, err := h.repo.ListPublished(r.Context(), limit, offset)
	if err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusOK, videos, "videos fetched successfully")
}

// Create accepts a multipart form: the video file, an optional thumbnail,
// and title/description fields. Both files go to object storage first; the
// row is only written once the uploads succeeded.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxVideoSizeBytes); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		web.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if !utf8.ValidString(title) || len(title) > 150 {
		web.Error(w, http.StatusBadRequest, "title is invalid")
		return
	}
	if !utf8.ValidString(description) || len(description) > 1000 {
		web.Error(w, http.StatusBadRequest, "description is invalid")
		return
	}

	videoURL, ok := h.uploadFile(w, r, "videoFile", "videos", "video/", maxVideoSizeBytes, true)
	if !ok {
		return
	}
	thumbnailURL, ok := h.uploadFile(w, r, "thumbnail", "thumbnails", "image/", maxImageSizeBytes, false)
	if !ok {
		return
	}

	v := &Video{
		OwnerID:     web.UserID(r.Context()),
		Title:       title,
		Description: description,
		VideoURL:    videoURL,
		Thumbnail:   thumbnailURL,
		IsPublished: true,
	}
	if err := h.repo.Create(r.Context(), v); err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusCreated, v, "video published successfully")
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid video id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var input UpdateInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if !utf8.ValidString(input.Title) || len(input.Title) > 150 {
		web.Error(w, http.StatusBadRequest, "title is invalid")
		return
	}
	if !utf8.ValidString(input.Description) || len(input.Description) > 1000 {
		web.Error(w, http.StatusBadRequest, "description is invalid")
		return
	}

	v, err := h.repo.Update(r.Context(), id, web.UserID(r.Context()), input)
	if err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusOK, v, "video updated successfully")
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid video id")
		return
	}

	if err := h.repo.Delete(r.Context(), id, web.UserID(r.Context())); err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusOK, struct{}{}, "video deleted successfully")
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request, field, folder, typePrefix string, maxSize int64, required bool) (string, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if !required {
			return "", true
		}
		web.Error(w, http.StatusBadRequest, field+" file is required")
		return "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "failed to read "+field)
		return "", false
	}
	if len(data) == 0 {
		web.Error(w, http.StatusBadRequest, field+" is empty")
		return "", false
	}
	if int64(len(data)) > maxSize {
		web.Error(w, http.StatusBadRequest, field+" is too large")
		return "", false
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), typePrefix) {
		web.Error(w, http.StatusBadRequest, field+" has the wrong content type")
		return "", false
	}

	url, err := h.uploader.Upload(r.Context(), folder, header.Filename, contentType, data)
	if err != nil {
		web.Error(w, http.StatusBadGateway, "failed to upload "+field)
		return "", false
	}

	return url, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
