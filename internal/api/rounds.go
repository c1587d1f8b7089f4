package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/services/rounds"
)

type createRoundRequest struct {
	GameType string          `json:"gameType" validate:"required"`
	Config   json.RawMessage `json:"config"`
}

type placeBetRequest struct {
	AccountID string          `json:"accountId" validate:"required,max=128"`
	Amount    int64           `json:"amount" validate:"gt=0,lte=2147483647"`
	Choice    json.RawMessage `json:"choice" validate:"required"`
}

type roundResponse struct {
	ID             uuid.UUID       `json:"id"`
	GameType       string          `json:"gameType"`
	Status         string          `json:"status"`
	Config         json.RawMessage `json:"config"`
	Result         json.RawMessage `json:"result,omitempty"`
	ServerSeed     string          `json:"serverSeed,omitempty"`
	ServerSeedHash string          `json:"serverSeedHash"`
	ClientSeed     string          `json:"clientSeed"`
	Nonce          int64           `json:"nonce"`
	CreatedAt      time.Time       `json:"createdAt"`
	LockedAt       *time.Time      `json:"lockedAt,omitempty"`
	ResolvedAt     *time.Time      `json:"resolvedAt,omitempty"`
	SettledAt      *time.Time      `json:"settledAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
}

func toRoundResponse(r rounds.Round) roundResponse {
	return roundResponse{
		ID:             r.ID,
		GameType:       r.GameType,
		Status:         string(r.Status),
		Config:         r.Config,
		Result:         r.Result,
		ServerSeed:     r.ServerSeed,
		ServerSeedHash: r.ServerSeedHash,
		ClientSeed:     r.ClientSeed,
		Nonce:          r.Nonce,
		CreatedAt:      r.CreatedAt,
		LockedAt:       r.LockedAt,
		ResolvedAt:     r.ResolvedAt,
		SettledAt:      r.SettledAt,
		CancelledAt:    r.CancelledAt,
	}
}

type betResponse struct {
	ID             uuid.UUID       `json:"id"`
	RoundID        uuid.UUID       `json:"roundId"`
	AccountID      string          `json:"accountId"`
	Amount         int64           `json:"amount"`
	Choice         json.RawMessage `json:"choice"`
	Status         string          `json:"status"`
	Payout         int64           `json:"payout"`
	IdempotencyKey string          `json:"idempotencyKey"`
	CreatedAt      time.Time       `json:"createdAt"`
	SettledAt      *time.Time      `json:"settledAt,omitempty"`
}

func toBetResponse(b rounds.Bet) betResponse {
	return betResponse{
		ID:             b.ID,
		RoundID:        b.RoundID,
		AccountID:      b.AccountID,
		Amount:         b.Amount,
		Choice:         b.Choice,
		Status:         string(b.Status),
		Payout:         b.Payout,
		IdempotencyKey: b.IdempotencyKey,
		CreatedAt:      b.CreatedAt,
		SettledAt:      b.SettledAt,
	}
}

// ListGamesHandler handles GET /games
func (h *HandlerProvider) ListGamesHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": h.rounds.Games()})
}

// CreateRoundHandler handles POST /rounds
func (h *HandlerProvider) CreateRoundHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoundRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	round, err := h.rounds.Create(r.Context(), games.ParseType(req.GameType), req.Config)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRoundResponse(round))
}

// GetOpenRoundHandler handles GET /rounds/open?type=RACE
func (h *HandlerProvider) GetOpenRoundHandler(w http.ResponseWriter, r *http.Request) {
	gameType := strings.TrimSpace(r.URL.Query().Get("type"))
	if gameType == "" {
		writeError(w, http.StatusBadRequest, "type query parameter required")
		return
	}

	round, err := h.rounds.GetOpenRound(r.Context(), games.ParseType(gameType))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoundResponse(round))
}

// GetRoundHandler handles GET /rounds/{roundId}
func (h *HandlerProvider) GetRoundHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseRoundID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	round, err := h.rounds.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoundResponse(round))
}

// PlaceBetHandler handles POST /rounds/{roundId}/bets
func (h *HandlerProvider) PlaceBetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseRoundID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := idempotencyKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req placeBetRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.rounds.PlaceBet(r.Context(), rounds.PlaceBetInput{
		RoundID:        id,
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		Choice:         req.Choice,
		IdempotencyKey: key,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, createdOrReplayed(res.Replayed), map[string]any{
		"bet":      toBetResponse(res.Bet),
		"balance":  res.Balance,
		"replayed": res.Replayed,
	})
}

// ListBetsHandler handles GET /rounds/{roundId}/bets?accountId=
func (h *HandlerProvider) ListBetsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseRoundID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.rounds.ListBets(r.Context(), id, r.URL.Query().Get("accountId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]betResponse, len(list))
	for i, b := range list {
		out[i] = toBetResponse(b)
	}

	writeJSON(w, http.StatusOK, map[string]any{"roundId": id, "bets": out})
}

// ResolveRoundHandler handles POST /rounds/{roundId}/resolve
func (h *HandlerProvider) ResolveRoundHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseRoundID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	round, err := h.rounds.LockAndResolve(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRoundResponse(round))
}

// SettleRoundHandler handles POST /rounds/{roundId}/settle
func (h *HandlerProvider) SettleRoundHandler(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.rounds.Settle)
}

// CancelRoundHandler handles POST /rounds/{roundId}/cancel
func (h *HandlerProvider) CancelRoundHandler(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.rounds.Cancel)
}

// ReconcileRoundHandler handles POST /rounds/{roundId}/reconcile
func (h *HandlerProvider) ReconcileRoundHandler(w http.ResponseWriter, r *http.Request) {
	h.report(w, r, h.rounds.Reconcile)
}

type reportOp func(ctx context.Context, id uuid.UUID) (rounds.SettleReport, error)

func (h *HandlerProvider) report(w http.ResponseWriter, r *http.Request, op reportOp) {
	id, err := parseRoundID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := op(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// VerifyRoundHandler handles GET /rounds/{roundId}/verify
func (h *HandlerProvider) VerifyRoundHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseRoundID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.rounds.Verify(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		rounds.Verification
		Valid bool `json:"valid"`
	}{Verification: v, Valid: v.Valid()})
}
