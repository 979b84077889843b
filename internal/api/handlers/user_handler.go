package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/user-api/internal/apperr"
	"github.com/isdelr/user-api/internal/auth"
	"github.com/isdelr/user-api/internal/models"
	"github.com/isdelr/user-api/internal/services"
	"github.com/rs/zerolog/log"
)

// loginTimeFormat is ISO 8601 with fixed millisecond precision.
const loginTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service      services.UserServiceProvider
	tokens       *auth.TokenManager
	secureCookie bool
}

// NewUserHandler creates a new UserHandler. secureCookie sets the Secure
// flag on the login cookie.
func NewUserHandler(service services.UserServiceProvider, tokens *auth.TokenManager, secureCookie bool) *UserHandler {
	return &UserHandler{service: service, tokens: tokens, secureCookie: secureCookie}
}

// CredentialsPayload defines the structure for create and login requests.
type CredentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdatePayload defines the structure for partial updates.
type UpdatePayload struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// DeletedPayload wraps the snapshot of a deleted user.
type DeletedPayload struct {
	DeletedUser models.UserResponse `json:"deletedUser"`
}

// GetAll handles the request to list every user.
func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetAllUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch users")
		writeError(w, err)
		return
	}
	writeList(w, "Users retrieved successfully", models.NewUserResponses(users), len(users))
}

// Get handles retrieving a user by their ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		logFailure(err, "Failed to get user by ID", "user_id", id)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "User retrieved successfully", models.NewUserResponse(user))
}

// GetByEmail handles retrieving a user by their email.
func (h *UserHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the request carries one, so the
	// parameter is still escaped in that case only.
	email := chi.URLParam(r, "email")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(email); err == nil {
			email = unescaped
		}
	}
	user, err := h.service.GetUserByEmail(r.Context(), email)
	if err != nil {
		logFailure(err, "Failed to get user by email", "email", email)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "User retrieved successfully", models.NewUserResponse(user))
}

// Create handles new user registration.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		logFailure(err, "Failed to create user", "email", payload.Email)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "User created successfully", models.NewUserResponse(user))
}

// Update handles partial updates of a user's email and/or password.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload UpdatePayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, payload.Email, payload.Password)
	if err != nil {
		logFailure(err, "Failed to update user", "user_id", id)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "User updated successfully", models.NewUserResponse(user))
}

// Delete handles the permanent deletion of a user account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.service.DeleteUser(r.Context(), id)
	if err != nil {
		logFailure(err, "Failed to delete user", "user_id", id)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "User deleted successfully", DeletedPayload{DeletedUser: models.NewUserResponse(user)})
}

// Login handles user authentication and JWT generation.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if !decodeJSON(w, r, &payload) {
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
		} else {
			logFailure(err, "Login failed", "email", payload.Email)
		}
		writeError(w, err)
		return
	}

	token, err := h.tokens.GenerateJWT(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		writeError(w, apperr.Internal("Login failed", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Expires:  time.Now().Add(auth.TokenTTL),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	writeData(w, http.StatusOK, "Login successful", models.LoginResult{
		User:      models.NewUserResponse(user),
		Token:     token,
		LoginTime: time.Now().UTC().Format(loginTimeFormat),
	})
}

// GetMe retrieves the currently authenticated user from the token.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		writeError(w, apperr.Internal("Could not retrieve user from token", nil))
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		logFailure(err, "User from token not found", "user_id", claims.UserID)
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, "User retrieved successfully", models.NewUserResponse(user))
}

// logFailure logs internal errors at error level and client errors at debug.
func logFailure(err error, msg, key, value string) {
	if apperr.KindOf(err) == apperr.KindInternal {
		log.Error().Err(err).Str(key, value).Msg(msg)
		return
	}
	log.Debug().Err(err).Str(key, value).Msg(msg)
}
