package user

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"viewsphere/internal/media"
	"viewsphere/internal/web"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9_.-]{3,20}$`)
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

const (
	maxJSONBodyBytes   = 1 << 20
	maxUploadSizeBytes = 10 << 20
)

type Handler struct {
	service  *Service
	uploader media.Uploader
}

func NewHandler(service *Service, uploader media.Uploader) *Handler {
	return &Handler{service: service, uploader: uploader}
}

// Signup registers a new account from a multipart form: text fields plus a
// required avatar file and an optional cover image.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	input := RegisterInput{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		FullName: strings.TrimSpace(r.FormValue("fullName")),
	}
	if message, ok := validateRegisterInput(input); !ok {
		web.Error(w, http.StatusBadRequest, message)
		return
	}

	avatarURL, ok := h.uploadFormImage(w, r, "avatar", "avatars", true)
	if !ok {
		return
	}
	coverURL, ok := h.uploadFormImage(w, r, "coverImage", "covers", false)
	if !ok {
		return
	}
	input.Avatar = avatarURL
	input.CoverImage = coverURL

	u, err := h.service.Register(r.Context(), input)
	if err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusCreated, u.Profile(), "user created successfully")
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), web.UserID(r.Context()))
	if err != nil {
		web.Fail(w, err)
		return
	}
	web.JSON(w, http.StatusOK, u.Profile(), "fetched user details successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body updateAccountRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.FullName = strings.TrimSpace(body.FullName)
	body.Email = strings.TrimSpace(body.Email)
	body.Username = strings.TrimSpace(body.Username)
	if body.FullName == "" || body.Email == "" || body.Username == "" {
		web.Error(w, http.StatusBadRequest, "fullName, email and username are required")
		return
	}
	if !usernameRegex.MatchString(strings.ToLower(body.Username)) {
		web.Error(w, http.StatusBadRequest, "username format is invalid")
		return
	}
	if !emailRegex.MatchString(body.Email) {
		web.Error(w, http.StatusBadRequest, "email format is invalid")
		return
	}

	u, err := h.service.UpdateAccount(r.Context(), web.UserID(r.Context()),
		body.FullName, body.Email, body.Username)
	if err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusOK, u.Profile(), "user details updated successfully")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body changePasswordRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if body.OldPassword == "" || body.NewPassword == "" {
		web.Error(w, http.StatusBadRequest, "old and new passwords are required")
		return
	}
	if message, ok := validatePassword(body.NewPassword); !ok {
		web.Error(w, http.StatusBadRequest, message)
		return
	}

	if err := h.service.ChangePassword(r.Context(), web.UserID(r.Context()),
		body.OldPassword, body.NewPassword); err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusOK, struct{}{}, "password changed successfully")
}

func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "avatars", h.service.store.UpdateAvatar,
		"profile picture updated successfully")
}

func (h *Handler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "covers", h.service.store.UpdateCoverImage,
		"cover image updated successfully")
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request, field, folder string,
	persist func(ctx context.Context, id, url string) error, message string) {
	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	url, ok := h.uploadFormImage(w, r, field, folder, true)
	if !ok {
		return
	}

	if err := persist(r.Context(), web.UserID(r.Context()), url); err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusOK, map[string]string{"url": url}, message)
}

func (h *Handler) Channel(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		web.Error(w, http.StatusBadRequest, "username is missing")
		return
	}

	profile, err := h.service.Channel(r.Context(), username, web.UserID(r.Context()))
	if err != nil {
		web.Fail(w, err)
		return
	}

	web.JSON(w, http.StatusOK, profile, "channel profile fetched successfully")
}

// uploadFormImage reads one image file from the parsed multipart form and
// ships it to object storage. A missing optional file yields ("", true).
func (h *Handler) uploadFormImage(w http.ResponseWriter, r *http.Request, field, folder string, required bool) (string, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if !required {
			return "", true
		}
		web.Error(w, http.StatusBadRequest, field+" file is required")
		return "", false
	}
	defer file.Close()

	data, contentType, ok := readImage(w, file, header)
	if !ok {
		return "", false
	}

	url, err := h.uploader.Upload(r.Context(), folder, header.Filename, contentType, data)
	if err != nil {
		web.Error(w, http.StatusBadGateway, "failed to upload "+field)
		return "", false
	}
	return url, true
}

func readImage(w http.ResponseWriter, file multipart.File, header *multipart.FileHeader) ([]byte, string, bool) {
	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "failed to read file")
		return nil, "", false
	}
	if len(data) == 0 {
		web.Error(w, http.StatusBadRequest, "file is empty")
		return nil, "", false
	}
	if len(data) > maxUploadSizeBytes {
		web.Error(w, http.StatusBadRequest, "file is too large")
		return nil, "", false
	}

	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		web.Error(w, http.StatusBadRequest, "file must be an image")
		return nil, "", false
	}

	return data, contentType, true
}

func validateRegisterInput(input RegisterInput) (string, bool) {
	if !usernameRegex.MatchString(strings.ToLower(input.Username)) {
		return "username format is invalid", false
	}
	if !emailRegex.MatchString(input.Email) {
		return "email format is invalid", false
	}
	if len(input.FullName) < 3 {
		return "full name is too short", false
	}
	return validatePassword(input.Password)
}

func validatePassword(password string) (string, bool) {
	if len(password) < 8 || len(password) > 200 {
		return "password must be 8-200 characters", false
	}
	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		default:
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return "password must mix upper, lower, numeric and special characters", false
	}
	return "", true
}
