// Package server is the HTTP face of the callback daemon. It routes the
// remote service's suite-ticket pushes into the client, builds install URLs,
// and dispatches registered business operations for ad-hoc use.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-wecom-suite/internal/jsoncodec"
	"github.com/jrsteele09/go-wecom-suite/service"
	"github.com/jrsteele09/go-wecom-suite/wecom"
	"github.com/rs/zerolog"
)

type Server struct {
	client   *wecom.Client
	registry *wecom.Registry
	router   *mux.Router
	log      zerolog.Logger
}

func New(client *wecom.Client, registry *wecom.Registry, log zerolog.Logger) *Server {
	s := &Server{
		client:   client,
		registry: registry,
		router:   mux.NewRouter(),
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/suite/ticket", s.handleSuiteTicket).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/url", s.handleAuthURL).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/exchange", s.handleAuthExchange).Methods(http.MethodPost)
	s.router.HandleFunc("/ops", s.handleListOps).Methods(http.MethodGet)
	s.router.HandleFunc("/ops/{name}", s.handleOperation).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSuiteTicket accepts the periodically pushed suite ticket. Decryption
// and signature checking of the upstream callback envelope happen in front
// of this daemon; by the time a request lands here the ticket is plaintext.
func (s *Server) handleSuiteTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SuiteTicket string `json:"suite_ticket"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := jsoncodec.Unmarshal(body, &req); err != nil || req.SuiteTicket == "" {
		s.writeError(w, http.StatusBadRequest, "suite_ticket required")
		return
	}

	s.client.SetSuiteTicket(req.SuiteTicket)
	s.log.Info().Msg("suite ticket rotated")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	preAuthCode := q.Get("pre_auth_code")
	redirectURI := q.Get("redirect_uri")
	if preAuthCode == "" || redirectURI == "" {
		s.writeError(w, http.StatusBadRequest, "pre_auth_code and redirect_uri required")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"url": s.client.AuthURL(preAuthCode, redirectURI, q.Get("state")),
	})
}

// handleAuthExchange completes a tenant authorization: it trades the
// temporary auth code for the corp's permanent code and registers that code
// with the client so corp tokens can be minted from now on. The permanent
// code itself is a secret and never leaves this process in a response.
func (s *Server) handleAuthExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthCode string `json:"auth_code"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := jsoncodec.Unmarshal(body, &req); err != nil || req.AuthCode == "" {
		s.writeError(w, http.StatusBadRequest, "auth_code required")
		return
	}

	info, err := service.GetPermanentCode(r.Context(), s.client, req.AuthCode)
	if err != nil {
		s.log.Error().Err(err).Msg("permanent code exchange failed")
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	if codes, ok := s.client.PermanentCodes().(*wecom.StaticPermanentCodes); ok {
		codes.Register(info.AuthCorpInfo.CorpID, info.PermanentCode)
	}

	s.log.Info().Str("corp_id", info.AuthCorpInfo.CorpID).Msg("tenant authorized")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"corp_id":   info.AuthCorpInfo.CorpID,
		"corp_name": info.AuthCorpInfo.CorpName,
	})
}

func (s *Server) handleListOps(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"operations": s.registry.Names()})
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	corpID := r.URL.Query().Get("corp_id")
	if corpID == "" {
		s.writeError(w, http.StatusBadRequest, "corp_id required")
		return
	}

	op, ok := s.registry.Lookup(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown operation")
		return
	}

	params, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	result, err := op(r.Context(), corpID, params)
	if err != nil {
		s.log.Error().Err(err).Str("operation", name).Str("corp_id", corpID).Msg("operation failed")
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

func statusFor(err error) int {
	var (
		apiErr       *wecom.APIError
		transportErr *wecom.TransportError
		parseErr     *wecom.ParseError
	)
	if errors.As(err, &apiErr) || errors.As(err, &transportErr) || errors.As(err, &parseErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
