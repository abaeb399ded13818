package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/config"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/ledger"
)

// Handler exposes the ledger engine over HTTP. It also owns the thin
// register/login surface; the engine itself never sees credentials.
type Handler struct {
	svc   *ledger.Ledger
	store interfaces.Store
	cfg   *config.Config
	log   *logrus.Logger
}

func New(svc *ledger.Ledger, store interfaces.Store, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, store: store, cfg: cfg, log: log}
}

// Router wires up all routes. Everything under /accounts requires a valid
// token.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)

	authed := r.PathPrefix("/accounts").Subrouter()
	authed.Use(h.auth)
	authed.HandleFunc("", h.ListAccounts).Methods(http.MethodGet)
	authed.HandleFunc("", h.CreateAccount).Methods(http.MethodPost)
	authed.HandleFunc("/{accountId}", h.DeleteAccount).Methods(http.MethodDelete)
	authed.HandleFunc("/{accountId}/transactions", h.ListTransactions).Methods(http.MethodGet)
	authed.HandleFunc("/{accountId}/transactions", h.CreateTransaction).Methods(http.MethodPost)
	authed.HandleFunc("/{accountId}/transactions/generate/{num}", h.GenerateTransactions).Methods(http.MethodPost)
	authed.HandleFunc("/{accountId}/transactions/{transactionId}", h.GetTransaction).Methods(http.MethodGet)
	authed.HandleFunc("/{accountId}/transactions/{transactionId}", h.DeleteTransaction).Methods(http.MethodDelete)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps the engine's error kinds onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		status = http.StatusBadRequest
	case ledger.KindNotFound:
		status = http.StatusNotFound
	case ledger.KindAuthorization:
		status = http.StatusUnauthorized
	case ledger.KindConflict:
		status = http.StatusConflict
	}

	var lerr *ledger.Error
	message := "something went wrong"
	if errors.As(err, &lerr) {
		message = lerr.Message
	}
	writeErrorMessage(w, status, message)
}
