// Package api exposes the relay over HTTP: the websocket endpoint, token
// issuing and read-only room lookup.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/chess-relay/game"
	"github.com/judgegodwins/chess-relay/room"
	"github.com/judgegodwins/chess-relay/session"
	"github.com/judgegodwins/chess-relay/tokens"
	"github.com/judgegodwins/chess-relay/util"
	"github.com/judgegodwins/chess-relay/ws"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	config      *util.Config
	tokenMaker  tokens.Maker
	wsManager   *ws.Manager
	coordinator *session.Coordinator
	router      *gin.Engine
	httpServer  *http.Server
}

func NewServer(config *util.Config, maker tokens.Maker, oracle game.Oracle) *Server {
	switch config.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if config.Mode == "debug" {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())

	manager := ws.NewManager(config, maker)
	coordinator := session.NewCoordinator(room.NewRegistry(oracle.NewPosition), oracle, manager)
	manager.SetSessions(coordinator)

	server := &Server{
		config:      config,
		tokenMaker:  maker,
		wsManager:   manager,
		coordinator: coordinator,
		router:      router,
	}

	router.GET("/ws", manager.ServeWS)
	router.GET("/healthz", server.Health)
	router.POST("/auth/username", server.TokenGenerator)
	router.GET("/auth/me", server.AuthMiddleware, server.GetTokenData)

	rooms := router.Group("/rooms")
	if config.RequireAuth {
		rooms.Use(server.AuthMiddleware)
	}
	rooms.POST("", server.CreateRoom)
	rooms.GET("", server.ListRooms)
	rooms.GET("/:id", server.CheckRoom)

	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%v", config.Port),
		Handler: server.Handler(),
	}

	log.Info().Str("module", "api").Bool("require_auth", config.RequireAuth).Msg("router setup")

	return server
}

// Handler returns the router wrapped with CORS for the allowed origins.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(s.router)
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	log.Info().Str("module", "api").Str("addr", s.httpServer.Addr).Msg("server started")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and disconnects every websocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wsManager.Shutdown()
	return err
}
