package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/auth"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/media"
	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/repositories"
	"github.com/vidhub/backend/internal/response"
)

// CookieSettings controls the token cookies set on login and refresh.
type CookieSettings struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// AccountHandler implements registration, authentication and profile endpoints.
type AccountHandler struct {
	Users   UserStore
	Tokens  TokenIssuer
	Media   MediaUploader
	Cookies CookieSettings
	TempDir string
	NowFunc func() time.Time
}

type registerRequest struct {
	FullName string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"required_without=Username"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,maxbytes=72"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// Register handles POST /users/register (multipart: avatar required, coverImage optional).
func (h AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	cleanup, err := parseMultipart(r)
	defer cleanup()
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	req := registerRequest{
		FullName: r.FormValue("fullname"),
		Email:    r.FormValue("email"),
		Username: r.FormValue("username"),
		Password: r.FormValue("password"),
	}
	trim(&req.FullName, &req.Email, &req.Username)
	req.Email = strings.ToLower(req.Email)
	req.Username = strings.ToLower(req.Username)
	if strings.TrimSpace(req.Password) == "" {
		req.Password = ""
	}
	if err := validateStruct(req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	exists, err := h.Users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		response.Error(ctx, w, apperr.Internal("Something went wrong while registering the user", err))
		return
	}
	if exists {
		response.Error(ctx, w, apperr.Conflict("User with email or username already exists"))
		return
	}

	avatarPath, err := saveFormFile(r, "avatar", h.TempDir)
	if err != nil {
		response.Error(ctx, w, apperr.Internal("Failed to read avatar", err))
		return
	}
	if avatarPath == "" {
		response.Error(ctx, w, apperr.BadRequest("Avatar file is required"))
		return
	}
	coverPath, err := saveFormFile(r, "coverImage", h.TempDir)
	if err != nil {
		discard(avatarPath)
		response.Error(ctx, w, apperr.Internal("Failed to read cover image", err))
		return
	}

	avatar, err := h.Media.Upload(ctx, avatarPath, media.KindImage)
	if err != nil {
		discard(coverPath)
		response.Error(ctx, w, uploadError(r, err, "Avatar file is required"))
		return
	}

	var coverURL string
	if coverPath != "" {
		cover, err := h.Media.Upload(ctx, coverPath, media.KindImage)
		if err != nil {
			logger.Warn("cover image upload failed, continuing without one", "error", err)
		} else {
			coverURL = cover.URL
		}
	}

	hash, err := hashPassword(req.Password, "Something went wrong while registering the user")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	now := h.now()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		Avatar:       avatar.URL,
		CoverImage:   coverURL,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			response.Error(ctx, w, apperr.Conflict("User with email or username already exists"))
			return
		}
		response.Error(ctx, w, apperr.Internal("Something went wrong while registering the user", err))
		return
	}

	logger.Info("user registered", "user_id", user.ID)
	response.JSON(ctx, w, http.StatusCreated, user.Sanitized(), "User registered successfully")
}

// Login handles POST /users/login.
func (h AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if form, err := parseURLEncoded(r); err != nil {
		response.Error(ctx, w, err)
		return
	} else if form {
		req = loginRequest{
			Username: r.PostForm.Get("username"),
			Email:    r.PostForm.Get("email"),
			Password: r.PostForm.Get("password"),
		}
	} else if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		response.Error(ctx, w, err)
		return
	}
	trim(&req.Username, &req.Email)
	req.Username = strings.ToLower(req.Username)
	req.Email = strings.ToLower(req.Email)
	if req.Username == "" && req.Email == "" {
		response.Error(ctx, w, apperr.BadRequest("username or email is required"))
		return
	}
	if err := validateStruct(req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	user, err := h.Users.FindByLogin(ctx, req.Username, req.Email)
	if err != nil {
		response.Error(ctx, w, storeError(err, "User does not exist", ""))
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		logging.FromContext(ctx).Warn("login password mismatch", "user_id", user.ID)
		response.Error(ctx, w, apperr.Unauthorized("Invalid user credentials"))
		return
	}

	pair, err := h.Tokens.IssueTokenPair(ctx, user.ID)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	h.setTokenCookies(w, pair)
	response.JSON(ctx, w, http.StatusOK, loginResponse{
		User:         user.Sanitized(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /users/logout.
func (h AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := h.Tokens.Revoke(ctx, user.ID); err != nil {
		response.Error(ctx, w, err)
		return
	}

	h.clearTokenCookies(w)
	response.JSON(ctx, w, http.StatusOK, struct{}{}, "User logged out")
}

// Refresh handles POST /users/refresh-token. The token comes from the cookie
// or, failing that, a JSON or form-encoded body.
func (h AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var token string
	if cookie, err := r.Cookie(auth.RefreshCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req refreshRequest
		if form, err := parseURLEncoded(r); err != nil {
			response.Error(ctx, w, err)
			return
		} else if form {
			req.RefreshToken = r.PostForm.Get("refreshToken")
		} else if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			response.Error(ctx, w, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		response.Error(ctx, w, apperr.Unauthorized("Unauthorized request"))
		return
	}

	pair, err := h.Tokens.RotateRefreshToken(ctx, token)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	h.setTokenCookies(w, pair)
	response.JSON(ctx, w, http.StatusOK, pair, "Access token refreshed")
}

// ChangePassword handles POST /users/change-password.
func (h AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		response.Error(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.NewPassword) == "" {
		req.NewPassword = ""
	}
	if err := validateStruct(req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	// The context user is sanitised; reload to get the hash.
	user, err := h.Users.FindByID(ctx, current.ID)
	if err != nil {
		response.Error(ctx, w, storeError(err, "User not found", ""))
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.OldPassword) {
		response.Error(ctx, w, apperr.BadRequest("Invalid old password"))
		return
	}

	hash, err := hashPassword(req.NewPassword, "Something went wrong while changing the password")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		response.Error(ctx, w, storeError(err, "User not found", ""))
		return
	}

	response.JSON(ctx, w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// CurrentUser handles GET /users/current-user.
func (h AccountHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	response.JSON(ctx, w, http.StatusOK, user, "Current user fetched successfully")
}

// UpdateAccount handles PATCH /users/update-account.
func (h AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, err := currentUser(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		response.Error(ctx, w, err)
		return
	}
	trim(&req.FullName, &req.Email)
	req.Email = strings.ToLower(req.Email)
	if err := validateStruct(req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	user, err := h.Users.UpdateAccount(ctx, current.ID, req.FullName, req.Email)
	if err != nil {
		response.Error(ctx, w, storeError(err, "User not found", "Email is already in use"))
		return
	}

	response.JSON(ctx, w, http.StatusOK, user.Sanitized(), "Account details updated successfully")
}

// UpdateAvatar handles PATCH /users/avatar.
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "Avatar file is missing", "Error while uploading avatar", "Avatar image updated successfully", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /users/cover-image.
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "Cover image file is missing", "Error while uploading cover image", "Cover image updated successfully", h.Users.UpdateCoverImage)
}

type imageSetter func(ctx context.Context, id, url string) (models.User, error)

func (h AccountHandler) updateImage(w http.ResponseWriter, r *http.Request, field, missing, failed, done string, set imageSetter) {
	ctx := r.Context()
	current, err := currentUser(r)
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

	path, err := saveFormFile(r, field, h.TempDir)
	if err != nil {
		response.Error(ctx, w, apperr.Internal("Failed to read upload", err))
		return
	}
	if path == "" {
		response.Error(ctx, w, apperr.BadRequest(missing))
		return
	}

	asset, err := h.Media.Upload(ctx, path, media.KindImage)
	if err != nil {
		response.Error(ctx, w, uploadError(r, err, failed))
		return
	}
	if asset.URL == "" {
		response.Error(ctx, w, apperr.BadRequest(failed))
		return
	}

	user, err := set(ctx, current.ID, asset.URL)
	if err != nil {
		response.Error(ctx, w, storeError(err, "User not found", ""))
		return
	}

	response.JSON(ctx, w, http.StatusOK, user.Sanitized(), done)
}

func (h AccountHandler) setTokenCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, h.cookie(auth.AccessCookie, pair.AccessToken, h.Cookies.AccessTTL))
	http.SetCookie(w, h.cookie(auth.RefreshCookie, pair.RefreshToken, h.Cookies.RefreshTTL))
}

func (h AccountHandler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(auth.AccessCookie, "", -1))
	http.SetCookie(w, h.cookie(auth.RefreshCookie, "", -1))
}

func (h AccountHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl < 0:
		c.MaxAge = -1
	case ttl > 0:
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}

func (h AccountHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}
