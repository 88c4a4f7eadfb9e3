package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roach88/diamond/internal/config"
	"github.com/roach88/diamond/internal/diamond"
	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]*ErrorBody{"error": {Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, false)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, true)
}

func (s *Server) send(w http.ResponseWriter, r *http.Request, static bool) {
	var req CallRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("decode body: %v", err))
		return
	}

	msg, err := s.message(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var receipt *engine.Receipt
	if static {
		receipt, err = s.engine.SubmitQuery(r.Context(), msg)
	} else {
		receipt, err = s.engine.Submit(r.Context(), msg)
	}
	if err != nil {
		s.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewReceipt(receipt))
}

func (s *Server) message(req CallRequest) (engine.Message, error) {
	var msg engine.Message
	from, err := config.ResolveAccount(req.From)
	if err != nil {
		return msg, fmt.Errorf("from: %w", err)
	}
	to, err := s.catalog.Resolve(req.To)
	if err != nil {
		return msg, fmt.Errorf("to: %w", err)
	}
	data, err := EncodeRequest(req)
	if err != nil {
		return msg, err
	}
	return engine.Message{From: from, To: to, Value: req.Value, Data: data, GasLimit: req.GasLimit}, nil
}

func (s *Server) engineError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrStopped) {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}

func (s *Server) handleModules(w http.ResponseWriter, r *http.Request) {
	entries := s.catalog.Entries()
	out := make([]Module, len(entries))
	for i, e := range entries {
		out[i] = Module{Name: e.Name, Address: e.Address(), Description: e.Description, Selectors: e.Selectors()}
	}
	writeJSON(w, http.StatusOK, map[string][]Module{"modules": out})
}

// diamondAddress parses {address} and checks that it has code.
func (s *Server) diamondAddress(w http.ResponseWriter, r *http.Request) (ir.Address, bool) {
	addr, err := ir.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return ir.Address{}, false
	}
	code, err := s.engine.CodeAt(r.Context(), addr)
	if err != nil {
		s.engineError(w, err)
		return ir.Address{}, false
	}
	if len(code) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no code at %s", addr))
		return ir.Address{}, false
	}
	return addr, true
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.diamondAddress(w, r)
	if !ok {
		return
	}
	c := diamond.NewClient(s.engine, addr, ir.Address{})
	c.Serialized = true

	facets, err := c.Facets(r.Context())
	if err != nil {
		s.executionError(w, err)
		return
	}
	owner, err := c.Owner(r.Context())
	if err != nil {
		s.executionError(w, err)
		return
	}

	resp := FacetsResponse{Diamond: addr, Owner: owner, Facets: make([]Facet, len(facets))}
	for i, f := range facets {
		resp.Facets[i] = Facet{Address: f.FacetAddress, Selectors: f.FunctionSelectors}
		if e, ok := s.catalog.ByAddress(f.FacetAddress); ok {
			resp.Facets[i].Name = e.Name
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// executionError reports a failed loupe read. Reverts mean the address is
// not a diamond with a loupe.
func (s *Server) executionError(w http.ResponseWriter, err error) {
	if code := diamond.ErrorCode(err); code != "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]*ErrorBody{"error": NewErrorBody(err)})
		return
	}
	s.engineError(w, err)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.diamondAddress(w, r)
	if !ok {
		return
	}
	filter := ir.LogFilter{Address: addr, Event: r.URL.Query().Get("event")}
	var err error
	if v := r.URL.Query().Get("after"); v != "" {
		if filter.AfterSeq, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("after: %v", err))
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("limit: invalid value %q", v))
			return
		}
	}

	logs, err := s.engine.Logs(r.Context(), filter)
	if err != nil {
		s.engineError(w, err)
		return
	}
	out := NewLogs(logs)
	if out == nil {
		out = []Log{}
	}
	writeJSON(w, http.StatusOK, map[string][]Log{"logs": out})
}
