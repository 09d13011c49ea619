package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vidhost/backend/internal/account"
	"github.com/vidhost/backend/internal/apperr"
	"github.com/vidhost/backend/internal/media"
	"github.com/vidhost/backend/internal/middleware"
	"github.com/vidhost/backend/internal/models"
)

const (
	refreshTokenCookie = "refreshToken"
	multipartMemory    = 10 << 20
)

// CookieConfig controls the attributes of the token cookies.
type CookieConfig struct {
	Secure bool
}

// UserHandler implements the account endpoints.
type UserHandler struct {
	Accounts       AccountService
	Cookies        CookieConfig
	MaxUploadBytes int64
}

// Register handles POST /register.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseMultipart(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer func() { _ = form.RemoveAll() }()

	avatar, closeAvatar, err := formFile(r, "avatar")
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer closeAvatar()

	cover, closeCover, err := formFile(r, "coverImage")
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer closeCover()

	user, err := h.Accounts.Register(r.Context(), account.RegisterInput{
		UserName:   r.FormValue("userName"),
		Email:      r.FormValue("email"),
		FullName:   r.FormValue("fullName"),
		Password:   r.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusCreated, user, "user registered successfully")
}

// Login handles POST /login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.Accounts.Login(r.Context(), account.LoginInput{
		UserName: fields["userName"],
		Email:    fields["email"],
		Password: fields["password"],
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.setTokenCookies(w, result.Tokens)
	respondJSON(r.Context(), w, http.StatusOK, loginResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "user logged in successfully")
}

// Logout handles POST /logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.Accounts.Logout(r.Context(), user.ID); err != nil {
		respondError(w, r, err)
		return
	}

	h.clearTokenCookies(w)
	respondJSON(r.Context(), w, http.StatusOK, struct{}{}, "user logged out")
}

// RefreshToken handles POST /refresh-token. The token is read from the cookie first, then the body.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		fields, err := readFields(r)
		if err != nil {
			respondError(w, r, err)
			return
		}
		token = fields["refreshToken"]
	}

	tokens, err := h.Accounts.RefreshAccessToken(r.Context(), token)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.setTokenCookies(w, tokens)
	respondJSON(r.Context(), w, http.StatusOK, refreshResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "access token refreshed")
}

// ChangePassword handles POST /password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fields, err := readFields(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.Accounts.ChangePassword(r.Context(), user.ID, fields["oldPassword"], fields["newPassword"]); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, struct{}{}, "password changed successfully")
}

// UpdateDetails handles PATCH /updateDetails.
func (h UserHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	fields, err := readFields(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.Accounts.UpdateProfile(r.Context(), user.ID, fields["fullName"], fields["email"])
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, updated, "account details updated successfully")
}

// CurrentUser handles GET /current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	current, err := h.Accounts.CurrentUser(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, current, "current user fetched successfully")
}

// UpdateAvatar handles PATCH /avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.Accounts.UpdateAvatar, "avatar updated successfully")
}

// UpdateCoverImage handles PATCH /coverImage.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.Accounts.UpdateCoverImage, "cover image updated successfully")
}

type imageUpdate func(ctx context.Context, userID string, file *media.File) (models.PublicUser, error)

func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdate, message string) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	form, err := h.parseMultipart(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer func() { _ = form.RemoveAll() }()

	file, closeFile, err := formFile(r, field)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer closeFile()

	updated, err := update(r.Context(), user.ID, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, updated, message)
}

// parseMultipart bounds the body and parses the form. Staged temporary files are removed
// by the caller through the returned form.
func (h UserHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, apperr.Validation(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, http.ErrNotMultipart):
			return nil, apperr.Validation("request must be multipart/form-data")
		default:
			return nil, apperr.Validation("invalid multipart form")
		}
	}
	return r.MultipartForm, nil
}

func (h UserHandler) setTokenCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, h.cookie(refreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (h UserHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		cookie := h.cookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (h UserHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// currentUser returns the user attached by the auth guard. Routes without the guard get a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (models.PublicUser, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondError(w, r, apperr.Authentication("unauthorized request", nil))
		return models.PublicUser{}, false
	}
	return user, true
}

// formFile returns the named upload, or nil when the field is absent.
func formFile(r *http.Request, field string) (*media.File, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, apperr.Validation("invalid " + field + " file")
	}
	return &media.File{Name: header.Filename, Body: file}, func() { _ = file.Close() }, nil
}

// readFields collects string fields from a JSON, urlencoded, or multipart body. An empty body yields no fields.
func readFields(r *http.Request) (map[string]string, error) {
	fields := make(map[string]string)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return fields, nil
			}
			return nil, apperr.Validation("invalid request body")
		}
		for key, value := range raw {
			if s, ok := value.(string); ok {
				fields[key] = s
			}
		}
		return fields, nil
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
		if r.MultipartForm != nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, apperr.Validation("invalid request body")
	}
	for key := range r.Form {
		fields[key] = r.Form.Get(key)
	}
	return fields, nil
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
