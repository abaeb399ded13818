package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
)

type ctxKey int

const ctxUserID ctxKey = 0

// Register creates a user with a bcrypt-hashed password and returns a
// signed token, so a fresh signup is immediately logged in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if missing := missingFields(map[string]string{
		"username": req.Username, "email": req.Email, "password": req.Password,
	}); len(missing) > 0 {
		writeErrorMessage(w, http.StatusBadRequest, "Missing the following fields: "+strings.Join(missing, ", "))
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		AccountIDs:   []string{},
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateID) {
			writeErrorMessage(w, http.StatusBadRequest, "that username is already taken")
			return
		}
		writeErrorMessage(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.signToken(user)
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.log.Infof("user registered: %s", user.Username)
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"token":    token,
	})
}

// Login authenticates by username and password and returns a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if missing := missingFields(map[string]string{
		"username": req.Username, "password": req.Password,
	}); len(missing) > 0 {
		writeErrorMessage(w, http.StatusBadRequest, "Missing the following fields: "+strings.Join(missing, ", "))
		return
	}

	user, err := h.store.FindUserByUsername(r.Context(), req.Username)
	if err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "That username doesn't exist")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeErrorMessage(w, http.StatusUnauthorized, "Incorrect password")
		return
	}

	token, err := h.signToken(user)
	if err != nil {
		writeErrorMessage(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.log.Infof("user logged in: %s", user.Username)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"token":    token,
	})
}

func (h *Handler) signToken(user models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	return token.SignedString([]byte(h.cfg.JWTSecret))
}

// auth verifies the bearer token and stashes the authenticated user id in
// the request context.
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "Please log in first")
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(h.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.Subject == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "Your token is invalid")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxUserID).(string)
	return id
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
