// Package api exposes a hardware signer to a wallet UI over HTTP,
// device events being pushed through a websocket.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/btccom/hwsigner/bip32util"
	"github.com/btccom/hwsigner/session"
	"github.com/btccom/hwsigner/signer"
	"github.com/btccom/hwsigner/trezor"
	"github.com/btccom/hwsigner/wallet"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const maxBodySize = 1 << 20

// Routes served by Server.
const (
	ConnectPath    = "/api/v1/connect"
	StatusPath     = "/api/v1/status"
	XpubPath       = "/api/v1/xpub"
	SignPath       = "/api/v1/sign"
	DisconnectPath = "/api/v1/disconnect"
	EventsPath     = "/api/v1/events"
)

// Status reports the signer capabilities.
type Status struct {
	Connected        bool             `json:"connected"`
	Authenticated    bool             `json:"authenticated"`
	TaprootSupported bool             `json:"taprootSupported"`
	Signing          bool             `json:"signing"`
	FetchingXpub     bool             `json:"fetchingXpub"`
	Features         *trezor.Features `json:"features,omitempty"`
}

// XpubRequest is the body of XpubPath requests.
type XpubRequest struct {
	Path string `json:"path"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// featuresReporter is implemented by signers exposing the raw
// device features.
type featuresReporter interface {
	Features() *trezor.Features
}

// Server serves a HardwareSigner.
type Server struct {
	signer   signer.HardwareSigner
	mux      *http.ServeMux
	upgrader websocket.Upgrader
	hub      *hub

	unsubscribe func()
}

// NewServer returns a Server driving s.
func NewServer(s signer.HardwareSigner) *Server {
	srv := &Server{
		signer: s,
		mux:    http.NewServeMux(),
		hub:    newHub(),
	}

	srv.mux.HandleFunc(ConnectPath, post(srv.handleConnect))
	srv.mux.HandleFunc(StatusPath, srv.handleStatus)
	srv.mux.HandleFunc(XpubPath, post(srv.handleXpub))
	srv.mux.HandleFunc(SignPath, post(srv.handleSign))
	srv.mux.HandleFunc(DisconnectPath, post(srv.handleDisconnect))
	srv.mux.HandleFunc(EventsPath, srv.handleEvents)

	srv.unsubscribe = s.Subscribe(func(event session.Event) {
		if err := srv.hub.broadcast(event); err != nil {
			log.Debugf("dropped event subscriber: %v", err)
		}
	})

	return srv
}

// Handle registers handler on the server mux, next to the API routes.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops publishing events and closes the websocket clients.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.closeAll()
}

func post(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
			return
		}
		handler(w, r)
	}
}

func (s *Server) status() *Status {
	status := &Status{
		Connected:        s.signer.IsConnected(),
		Authenticated:    s.signer.IsAuthenticated(),
		TaprootSupported: s.signer.IsTaprootSupported(),
		Signing:          s.signer.IsSigning(),
		FetchingXpub:     s.signer.IsFetchingXpub(),
	}
	if reporter, ok := s.signer.(featuresReporter); ok {
		status.Features = reporter.Features()
	}
	return status
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.signer.Connect(r.Context()); err != nil {
		writeSignerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleXpub(w http.ResponseWriter, r *http.Request) {
	req := &XpubRequest{}
	if err := decodeBody(w, r, req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.signer.Xpub(r.Context(), req.Path)
	if err != nil {
		writeSignerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	tx := &wallet.UnsignedTransaction{}
	if err := decodeBody(w, r, tx); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	log.Debugf("signing request with %d inputs and %d outputs, fee %s BTC",
		len(tx.Inputs), len(tx.Outputs), wallet.FormatAmount(tx.FeeValue))

	signed, err := s.signer.Sign(r.Context(), tx)
	if err != nil {
		writeSignerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.signer.Disconnect()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn}
	s.hub.add(c)
	log.Debugf("events subscriber %s connected", r.RemoteAddr)

	// Clients don't send anything, reading only detects them leaving.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if s.hub.remove(c) {
		c.close()
	}
	log.Debugf("events subscriber %s left", r.RemoteAddr)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

// statusCode maps the signer errors to HTTP statuses: requests
// that can't be valid are 400, requests conflicting with the
// session state 409, requests cancelled before reaching the
// device 408, and device failures 502.
func statusCode(err error) int {
	var (
		malformed   *bip32util.MalformedPathError
		unsupported *wallet.UnsupportedAccountTypeError
		build       *trezor.TransactionBuildError
		input       *trezor.InvalidInputError
		output      *trezor.InvalidOutputError
		ambiguous   *trezor.AmbiguousOutputError

		connecting   *session.AlreadyConnectingError
		busy         *session.DeviceBusyError
		notConnected *session.NotConnectedError
		cancelled    *session.CancelledError

		connection *session.ConnectionError
		xpub       *session.XpubRetrievalError
		rejected   *trezor.SigningRejectedError
	)

	switch {
	case errors.As(err, &malformed), errors.As(err, &unsupported),
		errors.As(err, &build), errors.As(err, &input),
		errors.As(err, &output), errors.As(err, &ambiguous):
		return http.StatusBadRequest
	case errors.As(err, &connecting), errors.As(err, &busy), errors.As(err, &notConnected):
		return http.StatusConflict
	case errors.As(err, &cancelled):
		return http.StatusRequestTimeout
	case errors.As(err, &connection), errors.As(err, &xpub), errors.As(err, &rejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeSignerError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		log.Errorf("unexpected signer error: %v", err)
	}
	writeError(w, code, err)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("cannot write response: %v", err)
	}
}
