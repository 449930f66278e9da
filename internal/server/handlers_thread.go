package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentd-ai/agentd/internal/storage"
	"github.com/agentd-ai/agentd/internal/turn"
	"github.com/agentd-ai/agentd/pkg/types"
)

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.threads.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"directory"`
		Title     string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Directory == "" {
		req.Directory = s.config.Directory
	}

	th, err := s.threads.Create(r.Context(), req.Directory, req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, th)
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	th, err := s.threads.Get(r.Context(), chi.URLParam(r, "threadID"))
	if err != nil {
		writeThreadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (s *Server) updateThread(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	th, err := s.threads.Update(r.Context(), chi.URLParam(r, "threadID"), updates)
	if err != nil {
		writeThreadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, th)
}

func (s *Server) archiveThread(w http.ResponseWriter, r *http.Request) {
	if err := s.threads.Archive(r.Context(), chi.URLParam(r, "threadID")); err != nil {
		writeThreadError(w, err)
		return
	}
	writeSuccess(w)
}

func (s *Server) listTurns(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if _, err := s.threads.Get(r.Context(), threadID); err != nil {
		writeThreadError(w, err)
		return
	}

	turns, err := s.threads.Turns(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) startTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input          []types.UserInput     `json:"input"`
		ApprovalPolicy *types.ApprovalPolicy `json:"approvalPolicy,omitempty"`
		Sandbox        *types.SandboxPolicy  `json:"sandbox,omitempty"`
		Cwd            string                `json:"cwd,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if len(req.Input) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "input required")
		return
	}
	if req.ApprovalPolicy != nil && !req.ApprovalPolicy.Valid() {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown approval policy")
		return
	}

	var overrides *turn.Overrides
	if req.ApprovalPolicy != nil || req.Sandbox != nil || req.Cwd != "" {
		overrides = &turn.Overrides{ApprovalPolicy: req.ApprovalPolicy, Sandbox: req.Sandbox, Cwd: req.Cwd}
	}

	t, err := s.controller.StartTurn(r.Context(), chi.URLParam(r, "threadID"), req.Input, overrides)
	if err != nil {
		switch {
		case errors.Is(err, turn.ErrTurnActive):
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		default:
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) interruptTurn(w http.ResponseWriter, r *http.Request) {
	err := s.controller.Interrupt(r.Context(), chi.URLParam(r, "threadID"), chi.URLParam(r, "turnID"))
	if err != nil {
		if errors.Is(err, turn.ErrUnknownTurn) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

func writeThreadError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	}
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
}
