package rpcproto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
)

// HTTPTransport delivers Calls over HTTP/JSON to peers at known
// addresses. Its client deliberately carries no timeout: there is no
// cancellation or retry anywhere in this protocol, and a receiver that
// never replies is fatal rather than something to route around.
type HTTPTransport struct {
	addrs  map[int]string // peer id -> base URL, e.g. "http://10.0.0.2:9001"
	client *http.Client
}

// NewHTTPTransport builds a transport over the given peer address
// table. addrs must contain every peer id this process will ever Call.
func NewHTTPTransport(addrs map[int]string) *HTTPTransport {
	return &HTTPTransport{
		addrs:  addrs,
		client: &http.Client{}, // no Timeout: see type doc
	}
}

// Call POSTs req as JSON to the /rpc endpoint of the given peer and
// decodes its Response.
func (h *HTTPTransport) Call(peerID int, req Request) (Response, error) {
	addr, ok := h.addrs[peerID]
	if !ok {
		return Response{}, fmt.Errorf("rpcproto: no address known for peer %d", peerID)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("rpcproto: encoding %s request: %w", req.Tag, err)
	}
	resp, err := h.client.Post(addr+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("rpcproto: calling peer %d (%s) with %s: %w", peerID, addr, req.Tag, err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("rpcproto: decoding reply from peer %d: %w", peerID, err)
	}
	return out, nil
}

// Server exposes a Handler over HTTP, serializing every request
// through a single mutex regardless of how many concurrent HTTP
// connections net/http's server accepts, so the handler is never
// re-entered.
type Server struct {
	handler Handler
	log     *logrus.Entry
	mu      sync.Mutex
}

// NewServer wraps h for HTTP exposure. log may be nil, in which case a
// disabled logger is used (useful in tests that don't care about
// diagnostics).
func NewServer(h Handler, log *logrus.Entry) *Server {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Server{handler: h, log: log}
}

// ServeHTTP implements http.Handler, decoding one Request per call and
// replying with its Response.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	resp := s.handler.Handle(req)
	s.mu.Unlock()

	if resp.Err != "" {
		s.log.WithField("tag", req.Tag).WithField("err", resp.Err).Error("rpc handler returned error")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
