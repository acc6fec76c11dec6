package devserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"console_go/internal/config"
	"console_go/internal/security"
	"console_go/internal/store/sqlite"
)

// NewRouter constructs the simulator's HTTP router: the same REST and
// websocket surface the production platform exposes to the console.
func NewRouter(cfg *config.Config, db *sql.DB, hub *Hub, tokenSvc *security.TokenService, passwordHasher security.PasswordHasher) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	convStore := sqlite.NewConversationRepo(db)
	operators := sqlite.NewOperatorRepo(db)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"console dev simulator","version":"1.0.0"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", handleLogin(operators, passwordHasher, tokenSvc))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc))

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", handleListConversations(convStore))
				r.Post("/{conversationID}/takeover", handleTakeover(convStore, hub))
				r.Patch("/{conversationID}/flags", handleSetFlag(convStore, hub))
				r.Post("/{conversationID}/messages", handleSendMessage(convStore, hub))
				r.Post("/{conversationID}/schedule-share", handleShareSchedule(convStore, hub))
			})
		})
	})

	r.Get("/ws", MakeWSHandler(hub, tokenSvc, cfg.CORSOrigins))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
