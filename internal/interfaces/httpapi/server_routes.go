package httpapi

import (
	"net/http"

	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}

func registerPublicMatchRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("GET /v1/matches/next", handler.OptionalAuth(http.HandlerFunc(handler.NextMatch)))
	mux.HandleFunc("GET /v1/matches/upcoming", handler.UpcomingMatches)
	mux.HandleFunc("GET /v1/matches/recent", handler.RecentMatches)
	mux.HandleFunc("GET /v1/matches/finished", handler.FinishedMatches)
	mux.HandleFunc("GET /v1/matches/{matchID}/events", handler.MatchEvents)
	mux.HandleFunc("GET /v1/matches/{matchID}/stats", handler.MatchStats)
	mux.HandleFunc("GET /v1/matches/{matchID}/impacts", handler.MatchImpacts)
	mux.HandleFunc("GET /v1/matches/{matchID}/timer", handler.MatchTimer)
	mux.HandleFunc("GET /v1/matches/{matchID}/live", handler.LiveState)
	mux.HandleFunc("GET /v1/matches/{matchID}/live/poll", handler.LivePoll)
	mux.HandleFunc("GET /v1/matches/{matchID}/live/ws", handler.LiveSocket)
}

func registerEditorRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("GET /v1/matches/{matchID}/events/can-edit", handler.RequireAuth(http.HandlerFunc(handler.CanEdit)))
	mux.Handle("POST /v1/matches/{matchID}/events/goals", handler.RequireAuth(http.HandlerFunc(handler.CreateGoal)))
	mux.Handle("PATCH /v1/matches/{matchID}/events/goals/{eventID}", handler.RequireAuth(http.HandlerFunc(handler.UpdateGoal)))
	mux.Handle("DELETE /v1/matches/{matchID}/events/goals/{eventID}", handler.RequireAuth(http.HandlerFunc(handler.DeleteGoal)))
}

func registerTrackerRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("GET /v1/matches/{matchID}/tracker/{teamID}/state", handler.RequireAuth(http.HandlerFunc(handler.TrackerState)))
	mux.Handle("POST /v1/matches/{matchID}/tracker/{teamID}/commands", handler.RequireAuth(http.HandlerFunc(handler.TrackerCommand)))
	mux.Handle("GET /v1/matches/{matchID}/tracker/{teamID}/poll", handler.RequireAuth(http.HandlerFunc(handler.TrackerPoll)))
	mux.Handle("GET /v1/matches/{matchID}/tracker/{teamID}/ws", handler.RequireAuth(http.HandlerFunc(handler.TrackerSocket)))
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler) {
	mux.Handle("POST /v1/admin/matches", handler.RequireAuth(http.HandlerFunc(handler.CreateMatch)))
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	for _, path := range []string{usecase.JobPathRecomputeImpact, usecase.JobPathRecomputeMinutes} {
		mux.Handle("POST "+path, RequireInternalJobToken(internalJobToken, handler.RunJob(path)))
	}
}
