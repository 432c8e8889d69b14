package httpapi

import (
	"net/http"

	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
)

type RouterConfig struct {
	Logger             *logging.Logger
	CORSAllowedOrigins []string
	InternalJobToken   string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler, cfg.Metrics)
	registerPublicMatchRoutes(mux, handler)
	registerEditorRoutes(mux, handler)
	registerTrackerRoutes(mux, handler)
	registerAdminRoutes(mux, handler)
	registerInternalJobRoutes(mux, handler, cfg.InternalJobToken)

	return RequestTracing(RequestLogging(logger, CORS(cfg.CORSAllowedOrigins, recoverPanic(handler, mux))))
}

func recoverPanic(handler *Handler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				handler.logger.ErrorContext(ctx, "panic recovered", "panic", rec, "http_path", r.URL.Path)
				writeJSON(ctx, w, http.StatusInternalServerError, errorBody{Code: "internal", Detail: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
