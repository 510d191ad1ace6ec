package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	httpServer *http.Server
	Router     *chi.Mux
}

// WriteTimeout covers a full synchronous batch run.
func NewServer(port string) *Server {
	router := chi.NewRouter()

	serv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{
		httpServer: serv,
		Router:     router,
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// RegisterSwagger serves the API docs registered by the docs package.
func (s *Server) RegisterSwagger() {
	s.Router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}
