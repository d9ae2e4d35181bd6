package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"productflow/internal/auth"
	"productflow/internal/store"
)

// CredentialsInput is the body of register and login requests.
type CredentialsInput struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanumunicode"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input CredentialsInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(input); err != nil {
		h.respondValidation(w, err)
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	user, err := h.store.CreateUser(r.Context(), strings.ToLower(input.Username), hash)
	if err != nil {
		h.storeError(w, r, "CreateUser", err, "Failed to register user")
		return
	}
	respondWithJSON(w, http.StatusCreated, userResponse{ID: user.ID, Username: user.Username})
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input CredentialsInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), input.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondWithError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.storeError(w, r, "GetUserByUsername", err, "Failed to log in")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, input.Password); err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.tokens.New(user.ID, user.Username, auth.DefaultTokenTTL)
	if err != nil {
		h.logger.Error("failed to sign access token", zap.Int64("user_id", user.ID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	respondWithJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(auth.DefaultTokenTTL.Seconds()),
	})
}

// CurrentUser returns the caller resolved by RequireToken.
func (h *HTTPHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), caller.ID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.storeError(w, r, "GetUserByID", err, "Failed to fetch user")
		return
	}
	respondWithJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username})
}

func (h *HTTPHandler) registerAuthRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.With(RequireToken(h.tokens)).Get("/user", h.CurrentUser)
}
