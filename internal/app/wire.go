package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/domain"
	"github.com/teamsheet/platform/internal/handler"
	"github.com/teamsheet/platform/internal/infra"
	"github.com/teamsheet/platform/internal/mirror"
	"github.com/teamsheet/platform/internal/projection"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/service"
)

// Services groups the mutation and query services the handlers call.
type Services struct {
	Auth       *service.AuthService
	Tenants    *service.TenantService
	Roster     *service.RosterService
	Matches    *service.MatchService
	References *service.ReferenceService
	Settings   *service.SettingsService
	Chat       *service.ChatService
	Games      *service.GameService
	Timers     *service.TimerService
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Adapter  *repository.Adapter
	Registry *mirror.Registry
	Hub      *infra.WSHub
	JWTMgr   *auth.JWTManager
	Tickets  *auth.TicketManager
	Cache    projection.Cache
	Services Services
	Logger   *slog.Logger
	// Comma-separated list, "*" for any origin.
	CORSAllowedOrigins string
}

// corsOptions builds the rs/cors configuration from a comma-separated origin list.
func corsOptions(origins string) cors.Options {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	svc := deps.Services
	jwtMgr := deps.JWTMgr
	logger := deps.Logger
	managers := auth.RequireRole(auth.ManagerRoles()...)

	// Handlers
	authHandler := handler.NewAuthHandler(svc.Auth, deps.Tickets)
	teamAdmin := handler.NewTeamAdminHandler(svc.Tenants, deps.Registry)
	playerHandler := handler.NewPlayerHandler(svc.Roster)
	matchHandler := handler.NewMatchHandler(svc.Matches)
	statsHandler := handler.NewStatsHandler(deps.Registry, deps.Cache)
	chatHandler := handler.NewChatHandler(svc.Chat, deps.Adapter)
	refHandler := handler.NewReferenceHandler(svc.References, deps.Adapter)
	settingsHandler := handler.NewSettingsHandler(svc.Settings)
	gameHandler := handler.NewGameHandler(svc.Games)
	timerHandler := handler.NewTimerHandler(svc.Timers)
	subscribeHandler := handler.NewSubscribeHandler(deps.Hub, deps.Tickets, deps.Registry, deps.Adapter, logger)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(deps.Adapter))

	r.Route("/v1", func(r chi.Router) {
		// WebSocket (ticket auth, no JSON content-type)
		r.Get("/ws", subscribeHandler.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(handler.JSONContentType)

			// Team entry (no auth)
			r.Post("/auth/team", authHandler.EnterTeam)

			// Super-tenant
			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.AuthenticateAdmin(jwtMgr))
				r.Get("/teams", teamAdmin.List)
				r.Post("/teams", teamAdmin.Create)
				r.Put("/teams/{teamID}/status", teamAdmin.SetStatus)
			})

			// Team and player tokens: reads, PIN login, tickets
			r.Group(func(r chi.Router) {
				r.Use(auth.AuthenticateTeam(jwtMgr))
				r.Use(handler.ActiveTeam(svc.Tenants, auth.TeamFromContext))

				r.Post("/auth/login", authHandler.Login)
				r.Post("/auth/ticket", authHandler.Ticket)

				r.Get("/state", statsHandler.State)
				r.Get("/stats/players", statsHandler.PlayerStats)
				r.Get("/stats/record", statsHandler.Record)
				r.Get("/treasury", statsHandler.Treasury)
				r.Get("/logistics", statsHandler.Logistics)

				r.Get("/players", playerHandler.List)
				r.Get("/players/{playerID}", playerHandler.Get)
				r.Get("/matches", matchHandler.List)
				r.Get("/matches/{matchID}", matchHandler.Get)
				r.Get("/matches/{matchID}/payments", statsHandler.MatchPayments)
				r.Get("/matches/{matchID}/attendance", statsHandler.MatchAttendance)
				r.Get("/matches/{matchID}/third-half", statsHandler.ThirdHalf)
				r.Get("/matches/{matchID}/messages", chatHandler.List)

				r.Get("/opponents", refHandler.ListOpponents)
				r.Get("/venues", refHandler.ListVenues)
				r.Get("/tournaments", refHandler.ListTournaments)
				r.Get("/standings-photos", refHandler.ListStandingsPhotos)
				r.Get("/team", refHandler.GetTeamInfo)
				r.Get("/settings", settingsHandler.Get)
				r.Get("/timer", timerHandler.State)
			})

			// Player tokens: self-service writes
			r.Group(func(r chi.Router) {
				r.Use(auth.AuthenticatePlayer(jwtMgr))
				r.Use(handler.ActiveTeam(svc.Tenants, auth.TeamFromContext))

				r.Put("/players/{playerID}/pin", playerHandler.SetPIN)
				r.Put("/matches/{matchID}/attendance/{playerID}", matchHandler.SetAttendance)
				r.Post("/matches/{matchID}/ratings", matchHandler.SubmitRatings)
				r.Post("/matches/{matchID}/third-half", matchHandler.AddThirdHalfItem)

				r.Post("/matches/{matchID}/messages", chatHandler.Post)
				r.Delete("/matches/{matchID}/messages/{messageID}", chatHandler.Delete)
				r.Post("/matches/{matchID}/messages/{messageID}/reactions", chatHandler.React)

				r.Get("/games/{game}/attempts", gameHandler.Status)
				r.Post("/games/{game}/attempts", gameHandler.Consume)

				r.Post("/timer/start", timerHandler.Start)
				r.Post("/timer/pause", timerHandler.Pause)
				r.Post("/timer/reset", timerHandler.Reset)

				// Captains and admins
				r.Group(func(r chi.Router) {
					r.Use(managers)

					r.Post("/players", playerHandler.Create)
					r.Put("/players/{playerID}", playerHandler.Update)
					r.Delete("/players/{playerID}", playerHandler.Delete)

					r.Post("/matches", matchHandler.Create)
					r.Put("/matches/{matchID}", matchHandler.Update)
					r.Delete("/matches/{matchID}", matchHandler.Delete)
					r.Put("/matches/{matchID}/payments/{playerID}", matchHandler.RecordPayment)
					r.Put("/matches/{matchID}/stats/{playerID}", matchHandler.UpdateStats)
					r.Put("/matches/{matchID}/voting", matchHandler.SetVoting)
					r.Put("/matches/{matchID}/status", matchHandler.SetStatus)
					r.Put("/matches/{matchID}/score", matchHandler.SetScore)
					r.Put("/matches/{matchID}/logistics", matchHandler.SetLogistics)

					r.Post("/opponents", refHandler.SaveOpponent)
					r.Delete("/opponents/{id}", refHandler.Delete(domain.CollectionOpponents))
					r.Post("/venues", refHandler.SaveVenue)
					r.Delete("/venues/{id}", refHandler.Delete(domain.CollectionVenues))
					r.Post("/tournaments", refHandler.SaveTournament)
					r.Delete("/tournaments/{id}", refHandler.Delete(domain.CollectionTournaments))
					r.Post("/standings-photos", refHandler.AddStandingsPhoto)
					r.Delete("/standings-photos/{id}", refHandler.Delete(domain.CollectionStandingsPhotos))
					r.Put("/team", refHandler.SaveTeamInfo)
					r.Put("/settings", settingsHandler.Save)
					r.Put("/timer/preferences", timerHandler.SetPreferences)
				})
			})
		})
	})

	return cors.New(corsOptions(deps.CORSAllowedOrigins)).Handler(r)
}
