package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

const maxRequestBodyBytes = 1 << 20

// Subscriber opens hub subscriptions for websocket viewers.
type Subscriber interface {
	Subscribe(key livehub.Key) (*livehub.Subscription, error)
}

type HandlerDeps struct {
	Matches     *usecase.MatchService
	Projections *usecase.ProjectionService
	Timer       *usecase.TimerService
	Tracker     *usecase.TrackerService
	Live        *usecase.LiveService
	Access      *usecase.AccessService
	Hub         Subscriber
	Jobs        map[string]usecase.JobHandler
	Logger      *logging.Logger

	// HideInternalErrors replaces internal error details with a generic
	// message, used in production.
	HideInternalErrors bool
	WSPingInterval     time.Duration
}

type Handler struct {
	matches      *usecase.MatchService
	projections  *usecase.ProjectionService
	timer        *usecase.TimerService
	tracker      *usecase.TrackerService
	live         *usecase.LiveService
	access       *usecase.AccessService
	hub          Subscriber
	jobs         map[string]usecase.JobHandler
	logger       *logging.Logger
	validator    *validator.Validate
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	hideInternal bool
}

func NewHandler(deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	ping := deps.WSPingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}

	return &Handler{
		matches:     deps.Matches,
		projections: deps.Projections,
		timer:       deps.Timer,
		tracker:     deps.Tracker,
		live:        deps.Live,
		access:      deps.Access,
		hub:         deps.Hub,
		jobs:        deps.Jobs,
		logger:      logger.Named("httpapi"),
		validator:   validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Live sockets are read-only and open to any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: ping,
		hideInternal: deps.HideInternalErrors,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz", routeAttrs(r)...)
	defer span.End()

	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

// decodeJSONObject reads a JSON object body into dst. Arrays and scalars are
// rejected before decoding.
func decodeJSONObject(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", usecase.ErrInvalidInput, err)
	}
	if len(raw) > maxRequestBodyBytes {
		return fmt.Errorf("%w: request body too large", usecase.ErrInvalidInput)
	}
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("%w: request body must be a JSON object", usecase.ErrInvalidInput)
	}
	if err := sonic.UnmarshalString(trimmed, dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

// parseTimeoutSeconds reads the long-poll timeout query value; empty means 0.
func parseTimeoutSeconds(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout must be a number of seconds", usecase.ErrInvalidInput)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", usecase.ErrInvalidInput)
	}
	return limit, nil
}

func parseFlag(raw string) (bool, error) {
	switch strings.TrimSpace(raw) {
	case "", "0", "false":
		return false, nil
	case "1", "true":
		return true, nil
	default:
		return false, fmt.Errorf("%w: expected 0 or 1, got %q", usecase.ErrInvalidInput, raw)
	}
}
