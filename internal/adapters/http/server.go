// Package http wires the REST surface and the websocket endpoint.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ltessier/courier/internal/adapters/http/handlers"
	"github.com/ltessier/courier/internal/adapters/http/middleware"
	"github.com/ltessier/courier/internal/application/services"
	"github.com/ltessier/courier/internal/auth"
	"github.com/ltessier/courier/internal/config"
	"github.com/ltessier/courier/internal/ports"
	"github.com/ltessier/courier/internal/realtime"
)

const readTimeout = 30 * time.Second

type Server struct {
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
}

type Deps struct {
	Issuer        *auth.TokenIssuer
	Hub           *realtime.Hub
	IDs           ports.IDGenerator
	Auth          *services.AuthService
	Users         *services.UserService
	Contacts      *services.ContactService
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Retrieval     *services.RetrievalService
	Presence      *services.PresenceService
	DBPing        func(ctx context.Context) error
	CachePing     func(ctx context.Context) error
}

func NewServer(cfg *config.Config, d Deps) *Server {
	router := chi.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logger)
	router.Use(middleware.Metrics)
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	healthH := handlers.NewHealthHandler(d.DBPing, d.CachePing)
	router.Get("/health", healthH.Readiness)
	router.Get("/health/live", healthH.Liveness)
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/static/avatars/*", http.StripPrefix("/static/avatars/",
		http.FileServer(http.Dir(cfg.Limits.AvatarDir))))

	wsH := NewWSHandler(d.Hub, d.Auth, d.Messages, d.Conversations, d.Presence, d.IDs, cfg.Server.CORSOrigins)
	router.Get("/api/v1/ws", wsH.ServeHTTP)

	authH := handlers.NewAuthHandler(d.Auth)
	userH := handlers.NewUserHandler(d.Users, d.Presence, cfg.Limits.AvatarDir, int64(cfg.Limits.AvatarMaxBytes))

	router.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)
		r.Post("/refresh", authH.Refresh)
		r.Post("/logout", authH.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Issuer))
			r.Post("/logout-all", authH.LogoutAll)
			r.Get("/me", userH.Me)
		})
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Issuer))

		r.Get("/users/me", userH.Me)
		r.Patch("/users/me", userH.UpdateMe)
		r.Put("/users/me", userH.UpdateMe)
		r.Put("/users/me/privacy", userH.UpdatePrivacy)
		r.Put("/users/me/status", userH.SetStatus)
		r.Put("/users/me/avatar", userH.UploadAvatar)
		r.Get("/users/search", userH.Search)
		r.Get("/users/{id}", userH.Get)
		r.Get("/users/{id}/presence", userH.Presence)

		contactH := handlers.NewContactHandler(d.Contacts)
		r.Post("/contacts", contactH.Add)
		r.Get("/contacts", contactH.List)
		r.Get("/contacts/exists/{userId}", contactH.Exists)
		r.Patch("/contacts/{id}", contactH.Update)
		r.Put("/contacts/{id}", contactH.Update)
		r.Delete("/contacts/{id}", contactH.Remove)
		r.Post("/contacts/{id}/block", contactH.Block)
		r.Post("/contacts/{id}/unblock", contactH.Unblock)
		r.Delete("/contacts/{id}/block", contactH.Unblock)

		convH := handlers.NewConversationHandler(d.Conversations)
		r.Post("/conversations/direct", convH.CreateDirect)
		r.Post("/conversations/group", convH.CreateGroup)
		r.Get("/conversations", convH.List)
		r.Get("/conversations/{id}", convH.Get)
		r.Patch("/conversations/{id}", convH.Update)
		r.Put("/conversations/{id}", convH.Update)
		r.Patch("/conversations/{id}/settings", convH.UpdateSettings)
		r.Get("/conversations/{id}/participants", convH.Participants)
		r.Post("/conversations/{id}/participants", convH.AddParticipants)
		r.Delete("/conversations/{id}/participants/{userId}", convH.RemoveParticipant)
		r.Put("/conversations/{id}/participants/{userId}/role", convH.SetAdmin)
		r.Post("/conversations/{id}/leave", convH.Leave)

		msgH := handlers.NewMessageHandler(d.Messages, d.Retrieval)
		r.Post("/conversations/{id}/messages", msgH.Send)
		r.Get("/conversations/{id}/messages", msgH.History)
		r.Get("/messages/conversations/{id}", msgH.History)
		r.Post("/conversations/{id}/read", msgH.MarkRead)
		r.Patch("/messages/{id}", msgH.Edit)
		r.Put("/messages/{id}", msgH.Edit)
		r.Delete("/messages/{id}", msgH.Delete)
		r.Get("/messages/unread", msgH.Unread)
		r.Get("/messages/search", msgH.Search)
	})

	return &Server{cfg: cfg, router: router}
}

// Router exposes the mux for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: readTimeout,
		// WriteTimeout stays 0 so websocket connections are not cut.
		WriteTimeout: 0,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
