package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/auth"
	"github.com/vidhub/backend/internal/models"
	"github.com/vidhub/backend/internal/repositories"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// maxbytes bounds the encoded length, unlike max which counts runes.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= limit
	})
	return v
}

var errEmptyBody = errors.New("empty request body")

// decodeJSON reads a JSON body into dst. An empty body yields errEmptyBody so
// callers with optional bodies can ignore it.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.New(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return apperr.Wrap(http.StatusBadRequest, "Invalid request body", err)
	}
	return nil
}

// parseURLEncoded parses an application/x-www-form-urlencoded body into
// r.PostForm. It reports false for any other content type.
func parseURLEncoded(r *http.Request) (bool, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return false, nil
	}
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return true, apperr.New(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return true, apperr.Wrap(http.StatusBadRequest, "Invalid request body", err)
	}
	return true, nil
}

// validateStruct runs the struct's validate tags and reports the first failure
// in client terms.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(http.StatusBadRequest, "Invalid request", err)
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required", "required_without":
		return apperr.BadRequest(fmt.Sprintf("%s is required", fe.Field()))
	case "email":
		return apperr.BadRequest(fmt.Sprintf("%s must be a valid email address", fe.Field()))
	case "min":
		return apperr.BadRequest(fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
	case "max":
		return apperr.BadRequest(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	case "maxbytes":
		return apperr.BadRequest(fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param()))
	case "oneof":
		return apperr.BadRequest(fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
	default:
		return apperr.BadRequest(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// storeError maps repository sentinels onto client errors.
func storeError(err error, notFound, conflict string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Conflict(conflict)
	default:
		return apperr.Internal("Something went wrong", err)
	}
}

// hashPassword hashes plain, reporting unusable passwords as client errors.
func hashPassword(plain, failure string) (string, error) {
	hash, err := auth.HashPassword(plain)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "", apperr.Wrap(http.StatusBadRequest, fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes), err)
	case errors.Is(err, auth.ErrEmptyPassword):
		return "", apperr.Wrap(http.StatusBadRequest, "password is required", err)
	default:
		return "", apperr.Internal(failure, err)
	}
}

// currentUser returns the identity attached by auth.Middleware.Require.
func currentUser(r *http.Request) (models.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return models.User{}, apperr.Unauthorized("Unauthorized request")
	}
	return user, nil
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func trim(values ...*string) {
	for _, v := range values {
		*v = strings.TrimSpace(*v)
	}
}
