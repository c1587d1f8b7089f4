package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/games"
	"github.com/fastprodman/pointsarena/internal/infra/logging"
	"github.com/fastprodman/pointsarena/internal/services/ledger"
	"github.com/fastprodman/pointsarena/internal/services/rounds"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

type LedgerService interface {
	Earn(ctx context.Context, op ledger.Operation) (ledger.Result, error)
	Spend(ctx context.Context, op ledger.Operation) (ledger.Result, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
	GetLedger(ctx context.Context, accountID string, limit int) ([]ledger.Entry, error)
}

type RoundService interface {
	Games() []games.Type
	Create(ctx context.Context, gameType games.Type, rawConfig json.RawMessage) (rounds.Round, error)
	Get(ctx context.Context, id uuid.UUID) (rounds.Round, error)
	GetOpenRound(ctx context.Context, gameType games.Type) (rounds.Round, error)
	PlaceBet(ctx context.Context, in rounds.PlaceBetInput) (rounds.PlaceBetResult, error)
	ListBets(ctx context.Context, roundID uuid.UUID, accountID string) ([]rounds.Bet, error)
	LockAndResolve(ctx context.Context, id uuid.UUID) (rounds.Round, error)
	Settle(ctx context.Context, id uuid.UUID) (rounds.SettleReport, error)
	Cancel(ctx context.Context, id uuid.UUID) (rounds.SettleReport, error)
	Reconcile(ctx context.Context, id uuid.UUID) (rounds.SettleReport, error)
	Verify(ctx context.Context, id uuid.UUID) (rounds.Verification, error)
}

// HandlerProvider exposes the ledger and the round engine over HTTP.
type HandlerProvider struct {
	ledger   LedgerService
	rounds   RoundService
	hub      *events.Hub
	validate *validator.Validate
}

func NewHandler(l LedgerService, r RoundService, hub *events.Hub) *HandlerProvider {
	return &HandlerProvider{
		ledger:   l,
		rounds:   r,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// --- Helpers ---

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", logging.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads a size-capped JSON body that may not carry unknown
// fields, then runs the struct's validate tags. It writes the 400 itself and
// reports false on failure.
func (h *HandlerProvider) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())

		return false
	}

	err = h.validate.Struct(dst)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
			}

			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: details})

			return false
		}

		writeError(w, http.StatusBadRequest, err.Error())

		return false
	}

	return true
}

func idempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		return "", fmt.Errorf("%s header required", idempotencyHeader)
	}

	return key, nil
}

// parseRoundID reads `{roundId}` from routes like GET /rounds/{roundId}.
func parseRoundID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "roundId")
	if raw == "" {
		return uuid.Nil, errors.New("missing roundId")
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid roundId: %w", err)
	}

	return id, nil
}

func parseAccountID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "accountId"))
	if id == "" {
		return "", errors.New("missing accountId")
	}

	return id, nil
}

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, rounds.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, rounds.ErrRoundNotFound):
		writeError(w, http.StatusNotFound, "round not found")
	case errors.Is(err, rounds.ErrInvalidRoundState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, rounds.ErrDuplicateBet):
		writeError(w, http.StatusConflict, "account already has a bet in this round")
	case errors.Is(err, ledger.ErrIdempotencyConflict), errors.Is(err, rounds.ErrBetKeyConflict):
		writeError(w, http.StatusConflict, "idempotency key reused with different parameters")
	case errors.Is(err, ledger.ErrConcurrentWrite):
		writeError(w, http.StatusConflict, "concurrent request with the same idempotency key, retry")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "timed out, retry with the same idempotency key")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// createdOrReplayed is 201 for a new write and 200 when an idempotency key
// replayed an earlier one.
func createdOrReplayed(replayed bool) int {
	if replayed {
		return http.StatusOK
	}

	return http.StatusCreated
}
