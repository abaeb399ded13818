package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/personal-finance-ledger/internal/ledger"
	"github.com/sheikh-saqib/personal-finance-ledger/internal/models"
)

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListEntries(r.Context(), userID(r), mux.Vars(r)["accountId"])
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount       decimal.Decimal        `json:"amount"`
		Type         models.TransactionType `json:"type"`
		Description  string                 `json:"description"`
		Counterparty string                 `json:"counterparty"`
		AccountType  models.AccountType     `json:"accountType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "amount must be a non-zero number")
		return
	}

	entries, err := h.svc.Post(r.Context(), ledger.Request{
		UserID:       userID(r),
		AccountID:    mux.Vars(r)["accountId"],
		Amount:       req.Amount,
		Description:  req.Description,
		Type:         req.Type,
		Counterparty: req.Counterparty,
		AccountType:  req.AccountType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entries)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.GetEntry(r.Context(), userID(r), mux.Vars(r)["transactionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.DeleteEntry(r.Context(), userID(r), mux.Vars(r)["transactionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// GenerateTransactions seeds an account with synthetic entries. The path
// segment must parse as an integer; the lower bound is checked by the
// engine so the two failures stay distinct.
func (h *Handler) GenerateTransactions(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(mux.Vars(r)["num"])
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "number of transactions must be an integer")
		return
	}

	entries, err := h.svc.GenerateEntries(r.Context(), userID(r), mux.Vars(r)["accountId"], n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entries)
}
