package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/thread", func(r chi.Router) {
		r.Get("/", s.listThreads)
		r.Post("/", s.createThread)

		r.Route("/{threadID}", func(r chi.Router) {
			r.Get("/", s.getThread)
			r.Patch("/", s.updateThread)
			r.Post("/archive", s.archiveThread)

			r.Get("/turn", s.listTurns)
			r.Post("/turn", s.startTurn)
			r.Post("/turn/{turnID}/interrupt", s.interruptTurn)
		})
	})

	// Approval responses
	r.Post("/approval/{approvalID}", s.respondApproval)

	// Event streaming (SSE)
	r.Get("/event", s.events)
}
