package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/services/ledger"
)

type pointsRequest struct {
	Amount  int64  `json:"amount" validate:"gt=0,lte=2147483647"`
	Reason  string `json:"reason" validate:"required"`
	RefType string `json:"refType" validate:"omitempty,oneof=GAME ADMIN TRANSFER ETC"`
	RefID   string `json:"refId" validate:"omitempty,max=255"`
}

type pointsResponse struct {
	AccountID string    `json:"accountId"`
	Balance   int64     `json:"balance"`
	EntryID   uuid.UUID `json:"entryId"`
	Replayed  bool      `json:"replayed"`
}

type entryResponse struct {
	ID             uuid.UUID `json:"id"`
	Delta          int64     `json:"delta"`
	BalanceAfter   int64     `json:"balanceAfter"`
	Reason         string    `json:"reason"`
	RefType        string    `json:"refType,omitempty"`
	RefID          string    `json:"refId,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt"`
}

// GetBalanceHandler handles GET /points/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bal, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"balance":   bal,
	})
}

// GetLedgerHandler handles GET /points/{accountId}/ledger?limit=N
func (h *HandlerProvider) GetLedgerHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	list, err := h.ledger.GetLedger(r.Context(), accountID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]entryResponse, len(list))
	for i, e := range list {
		out[i] = entryResponse{
			ID:             e.ID,
			Delta:          e.Delta,
			BalanceAfter:   e.BalanceAfter,
			Reason:         e.Reason,
			RefType:        e.RefType,
			RefID:          e.RefID,
			IdempotencyKey: e.IdempotencyKey,
			CreatedAt:      e.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"entries":   out,
	})
}

// EarnHandler handles POST /points/{accountId}/earn
func (h *HandlerProvider) EarnHandler(w http.ResponseWriter, r *http.Request) {
	h.applyPoints(w, r, h.ledger.Earn)
}

// SpendHandler handles POST /points/{accountId}/spend
func (h *HandlerProvider) SpendHandler(w http.ResponseWriter, r *http.Request) {
	h.applyPoints(w, r, h.ledger.Spend)
}

type pointsOp func(ctx context.Context, op ledger.Operation) (ledger.Result, error)

func (h *HandlerProvider) applyPoints(w http.ResponseWriter, r *http.Request, apply pointsOp) {
	accountID, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := idempotencyKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req pointsRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := apply(r.Context(), ledger.Operation{
		AccountID:      accountID,
		Amount:         req.Amount,
		Reason:         ledger.Reason(req.Reason),
		RefType:        ledger.RefType(req.RefType),
		RefID:          req.RefID,
		IdempotencyKey: key,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, createdOrReplayed(res.Replayed), pointsResponse{
		AccountID: accountID,
		Balance:   res.Balance,
		EntryID:   res.EntryID,
		Replayed:  res.Replayed,
	})
}
