package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/oauth2"

	"github.com/susu3304/bidgame/internal/config"
	"github.com/susu3304/bidgame/internal/guess"
)

type API struct {
	router      *mux.Router
	svc         *guess.Service
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
}

func New(cfg *config.Config, svc *guess.Service) *API {
	api := &API{
		router:    mux.NewRouter(),
		svc:       svc,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/public/games", a.handleActualGames).Methods("GET")
	a.router.HandleFunc("/api/public/games/{id}", a.handleGetGame).Methods("GET")
	a.router.HandleFunc("/api/public/random", a.handleRandom).Methods("GET")
	a.router.HandleFunc("/api/public/events", a.handleEvents).Methods("GET")
	a.router.HandleFunc("/api/metrics", a.handleMetrics).Methods("GET")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/games", a.handleCreateGame).Methods("POST")
	protected.HandleFunc("/games/{id}/join", a.handleJoinGame).Methods("POST")
	protected.HandleFunc("/games/{id}/limit", a.handleLimitParticipants).Methods("PUT")
	protected.HandleFunc("/games/{id}/finish", a.handleFinishGame).Methods("POST")
	protected.HandleFunc("/games/{id}/claim", a.handleClaim).Methods("POST")
	protected.HandleFunc("/me/games", a.handleUserGames).Methods("GET")
	protected.HandleFunc("/me/wallet", a.handleWallet).Methods("GET")
	protected.HandleFunc("/me/wallet/deposit", a.handleDeposit).Methods("POST")
}

// Handler returns the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	// When AllowedOrigins is "*", AllowCredentials must be false
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	log.Printf("API server listening on http://%s", a.config.WebBind)
	return http.ListenAndServe(a.config.WebBind, a.Handler())
}
