package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	votingengine "agora/contexts/civic-participation/voting-engine"
	votingerrors "agora/contexts/civic-participation/voting-engine/domain/errors"
	votinghttp "agora/contexts/civic-participation/voting-engine/transport/http"
	_ "agora/internal/platform/httpserver/docs"
)

type Server struct {
	router chi.Router
	logger *slog.Logger
	addr   string
	voting votingengine.Module
}

func New(voting votingengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
		addr:   addr,
		voting: voting,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.router)
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Mount("/swagger", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.router.Route("/api/v1/vote-events", func(r chi.Router) {
		r.Post("/", s.handleCreateVoteEvent)
		r.Route("/{event_id}", func(r chi.Router) {
			r.Get("/", s.handleGetVoteEvent)
			r.Put("/", s.handleUpdateVoteEvent)
			r.Post("/open", s.handleOpenVoteEvent)
			r.Post("/cancel", s.handleCancelVoteEvent)
			r.Post("/ballots", s.handleSubmitBallot)
			r.Post("/close", s.handleCloseAndTally)
			r.Get("/result", s.handleGetResult)
			r.Post("/receipts/verify", s.handleVerifyReceipt)
			r.Get("/verify", s.handleVerifyTally)
		})
	})
}

func (s *Server) handleCreateVoteEvent(w http.ResponseWriter, r *http.Request) {
	actorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if actorID == "" {
		writeVotingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req votinghttp.CreateVoteEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.voting.Handler.CreateVoteEventHandler(r.Context(), actorID, req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetVoteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	resp, err := s.voting.Handler.GetVoteEventHandler(r.Context(), eventID)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateVoteEvent(w http.ResponseWriter, r *http.Request) {
	actorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if actorID == "" {
		writeVotingError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	eventID := chi.URLParam(r, "event_id")

	var req votinghttp.UpdateVoteEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.voting.Handler.UpdateVoteEventHandler(r.Context(), eventID, req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenVoteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	if err := s.voting.Handler.OpenVoteEventHandler(r.Context(), eventID); err != nil {
		writeVotingDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelVoteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	if err := s.voting.Handler.CancelVoteEventHandler(r.Context(), eventID); err != nil {
		writeVotingDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitBallot(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")

	var req votinghttp.SubmitBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.VoterID) == "" {
		req.VoterID = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}

	resp, err := s.voting.Handler.SubmitBallotHandler(r.Context(), eventID, req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseAndTally(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")

	req := votinghttp.TallyActionRequest{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}
	if req.CountedBy == "" {
		req.CountedBy = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}

	resp, err := s.voting.Handler.CloseAndTallyHandler(r.Context(), eventID, req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	resp, err := s.voting.Handler.GetResultHandler(r.Context(), eventID)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")

	var req votinghttp.VerifyReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.voting.Handler.VerifyReceiptHandler(r.Context(), eventID, req)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyTally(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")
	resp, err := s.voting.Handler.VerifyTallyHandler(r.Context(), eventID)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeVotingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, votingerrors.ErrEventNotFound):
		writeVotingError(w, http.StatusNotFound, "vote_event_not_found", err.Error())
	case errors.Is(err, votingerrors.ErrResultNotAvailable):
		writeVotingError(w, http.StatusNotFound, "result_not_available", err.Error())
	case errors.Is(err, votingerrors.ErrInsufficientVerification),
		errors.Is(err, votingerrors.ErrNotInAllowedGroup):
		writeVotingError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, votingerrors.ErrVotingClosed):
		writeVotingError(w, http.StatusConflict, "voting_closed", err.Error())
	case errors.Is(err, votingerrors.ErrInvalidBallotInput),
		errors.Is(err, votingerrors.ErrUnknownOption),
		errors.Is(err, votingerrors.ErrOptionCountOutOfRange),
		errors.Is(err, votingerrors.ErrInvalidRanking),
		errors.Is(err, votingerrors.ErrCreditBudgetExceeded),
		errors.Is(err, votingerrors.ErrBudgetExceeded):
		writeVotingError(w, http.StatusUnprocessableEntity, "invalid_ballot", err.Error())
	case errors.Is(err, votingerrors.ErrInvalidEventConfig):
		writeVotingError(w, http.StatusUnprocessableEntity, "invalid_event_config", err.Error())
	case errors.Is(err, votingerrors.ErrInvalidTransition),
		errors.Is(err, votingerrors.ErrEventImmutable):
		writeVotingError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, votingerrors.ErrConflict):
		writeVotingError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeVotingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeVotingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votinghttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
