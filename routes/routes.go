package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/accstats/accstats/handlers"
	"github.com/accstats/accstats/middleware"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Health       *handlers.HealthHandler
	Driver       *handlers.DriverHandler
	Ingest       *handlers.IngestHandler
	Session      *handlers.SessionHandler
	Grouping     *handlers.GroupingHandler
	Competition  *handlers.CompetitionHandler
	Championship *handlers.ChampionshipHandler
	Penalty      *handlers.PenaltyHandler
	Points       *handlers.PointsHandler
	Entrylist    *handlers.EntrylistHandler
	Pipeline     *handlers.PipelineHandler
	Scheduler    *handlers.SchedulerHandler
	WebSocket    *handlers.WebSocketHandler
}

// SetupRoutes mounts the API. Reads are public; everything that writes
// sits behind JWT authentication and the admin role.
func SetupRoutes(router *chi.Mux, auth *middleware.Authenticator, allowedOrigins []string, h Handlers) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", h.Health.Healthz)
	router.Post("/auth/login", h.Auth.Login)

	router.Route("/drivers", func(r chi.Router) {
		r.Get("/", h.Driver.ListDrivers)
		r.Get("/{driverID}", h.Driver.GetDriver)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))

			r.Patch("/{driverID}/trust", h.Driver.SetTrustLevel)
		})
	})

	router.Route("/ingest", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(middleware.RoleAdmin))

		r.Post("/scan", h.Ingest.Scan)
		r.Post("/files/{filename}", h.Ingest.IngestFile)
	})

	router.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.Session.ListSessions)
		r.Get("/{sessionID}", h.Session.GetSession)
	})

	router.Route("/grouping", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(middleware.RoleAdmin))

		r.Post("/preview", h.Grouping.Preview)
		r.Post("/assign", h.Grouping.Assign)
	})

	router.Route("/competitions", func(r chi.Router) {
		r.Get("/", h.Competition.ListCompetitions)
		r.Get("/{competitionID}", h.Competition.GetCompetition)
		r.Get("/{competitionID}/results", h.Competition.GetResults)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))

			r.Post("/{competitionID}/score", h.Competition.ScoreCompetition)
			r.Patch("/{competitionID}/points-system", h.Competition.SetPointsSystem)
			r.Delete("/{competitionID}", h.Competition.DeleteCompetition)
		})
	})

	router.Route("/championships", func(r chi.Router) {
		r.Get("/", h.Championship.ListChampionships)
		r.Get("/{championshipID}", h.Championship.GetChampionship)
		r.Get("/{championshipID}/standings", h.Championship.GetStandings)
		r.Get("/{championshipID}/penalties", h.Penalty.ListPenalties)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))

			r.Post("/", h.Championship.CreateChampionship)
			r.Post("/{championshipID}/score", h.Championship.ScoreChampionship)
			r.Post("/{championshipID}/penalties", h.Penalty.CreatePenalty)
		})
	})

	router.Route("/penalties", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(middleware.RoleAdmin))

		r.Delete("/{penaltyID}", h.Penalty.DeactivatePenalty)
	})

	router.Route("/points-systems", func(r chi.Router) {
		r.Get("/", h.Points.ListPointsSystems)
		r.Get("/{name}", h.Points.GetPointsSystem)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))

			r.Post("/", h.Points.CreatePointsSystem)
			r.Put("/{name}", h.Points.UpdatePointsSystem)
			r.Patch("/{name}/active", h.Points.SetPointsSystemActive)
		})
	})

	router.Route("/entrylist", func(r chi.Router) {
		r.Get("/export", h.Entrylist.ExportEntrylist)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))

			r.Post("/import", h.Entrylist.ImportEntrylist)
			r.Post("/push", h.Entrylist.PushEntrylist)
		})
	})

	router.Route("/reports", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(middleware.RoleAdmin))

		r.Post("/bad-drivers", h.Driver.ImportBadReports)
	})

	router.Route("/pipeline", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(middleware.Authorize(middleware.RoleAdmin))

		r.Post("/run", h.Pipeline.Run)
	})

	router.Route("/scheduler", func(r chi.Router) {
		r.Get("/status", h.Scheduler.Status)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(middleware.Authorize(middleware.RoleAdmin))

			r.Post("/start", h.Scheduler.Start)
			r.Post("/stop", h.Scheduler.Stop)
		})
	})

	router.Get("/ws/standings/{championshipID}", h.WebSocket.ServeStandings)
}
