package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"budget-service/internal/middleware"
	"budget-service/internal/models"
	"budget-service/internal/service"
)

type Handler struct {
	svc  *service.Service
	auth *service.Auth
}

func NewHandler(svc *service.Service, auth *service.Auth) *Handler {
	return &Handler{svc: svc, auth: auth}
}

// AddTransaction handles transaction creation
func (h *Handler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var txn models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&txn); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.AddTransaction(r.Context(), &txn)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListTransactions handles predicate-filtered transaction lookup
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.svc.Transactions(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

// ExportTransactions handles the XML statement export
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.TransactionStatementXML(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(doc)
}

// ListAllocations handles predicate-filtered allocation lookup
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.svc.Allocations(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allocs)
}

// UpdateAllocation handles full replacement of an allocation
func (h *Handler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var alloc models.Allocation
	if err := json.NewDecoder(r.Body).Decode(&alloc); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateAllocation(r.Context(), &alloc); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SplitAllocation handles splitting an allocation into two
func (h *Handler) SplitAllocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid id")
		return
	}
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid amount")
		return
	}

	alloc, err := h.svc.SplitAllocation(r.Context(), id, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

// MergeAllocations handles merging allocations into one
func (h *Handler) MergeAllocations(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	for _, raw := range r.URL.Query()["ids"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid ids")
			return
		}
		ids = append(ids, id)
	}

	alloc, err := h.svc.MergeAllocations(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

// Token handles the authentication endpoint. A refresh_token grant rotates
// an existing pair; anything else is treated as a password grant.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var username string
	if r.PostFormValue("grant_type") == "refresh_token" {
		u, err := h.auth.ValidateRefreshToken(r.Context(), r.PostFormValue("refresh_token"))
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				middleware.Challenge(w, "Invalid/expired refresh token")
				return
			}
			writeError(w, err)
			return
		}
		username = u
	} else {
		username = r.PostFormValue("username")
		if !h.auth.VerifyCredential(username, r.PostFormValue("password")) {
			middleware.Challenge(w, "Incorrect username or password")
			return
		}
	}

	token, err := h.auth.CreateToken(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps domain errors onto HTTP statuses. Unexpected errors are
// never echoed back to the caller.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidArgument):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		middleware.Challenge(w, "Unauthorized")
	case errors.Is(err, models.ErrConflict):
		writeDetail(w, http.StatusConflict, "concurrent modification, retry the request")
	default:
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}
