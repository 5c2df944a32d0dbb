package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Dosada05/tournify/docs"
	"github.com/Dosada05/tournify/handlers"
	"github.com/Dosada05/tournify/middleware"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Handlers struct {
	Tournament  *handlers.TournamentHandler
	Participant *handlers.ParticipantHandler
	Match       *handlers.MatchHandler
	Payment     *handlers.PaymentHandler
	WebSocket   *handlers.WebSocketHandler
}

func SetupRoutes(router *chi.Mux, opts Options, h Handlers) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)
	optionalAuth := middleware.OptionalAuthenticate(opts.JWTSecret)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.SwaggerJSON)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/tournaments", func(r chi.Router) {
		r.With(optionalAuth).Get("/", h.Tournament.ListHandler)
		r.Get("/code/{code}", h.Tournament.GetByCodeHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", h.Tournament.CreateHandler)
			r.Post("/join", h.Participant.JoinByCode)
		})

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", h.Tournament.GetByIDHandler)
			r.Get("/participants", h.Participant.List)
			r.Get("/bracket", h.Tournament.BracketHandler)
			r.Get("/standings", h.Tournament.StandingsHandler)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Put("/", h.Tournament.UpdateHandler)
				r.Delete("/", h.Tournament.DeleteHandler)
				r.Post("/end", h.Tournament.EndHandler)
				r.Post("/advance", h.Tournament.AdvanceHandler)
				r.Post("/standings/recompute", h.Tournament.RecomputeStandingsHandler)

				r.Post("/join", h.Participant.Join)
				r.Post("/leave", h.Participant.Leave)
				r.Delete("/participants/{participantID}", h.Participant.Remove)

				r.Post("/payments", h.Payment.InitiateHandler)
			})
		})
	})

	router.With(authenticate).Put("/matches/{matchID}/result", h.Match.SubmitResultHandler)

	// Callback шлюза аутентифицируется общим секретом, а не JWT.
	router.Post("/payments/callback", h.Payment.CallbackHandler)

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)
}
