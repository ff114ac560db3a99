// Package httpapi translates HTTP requests into ledger reads and appends.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/pulse_ledger/internal/app"
	"github.com/R3E-Network/pulse_ledger/internal/app/metrics"
)

// handler bundles HTTP endpoints for the ledger service.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the ledger REST API. The root path
// mirrors the chain endpoints so bare GET/POST against / work as well.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	r := mux.NewRouter()

	r.HandleFunc("/", h.getChain).Methods(http.MethodGet)
	r.HandleFunc("/", h.postBlock).Methods(http.MethodPost)
	r.HandleFunc("/chain", h.getChain).Methods(http.MethodGet)
	r.HandleFunc("/chain", h.postBlock).Methods(http.MethodPost)
	r.HandleFunc("/chain/head", h.getHead).Methods(http.MethodGet)
	r.HandleFunc("/chain/stream", h.streamBlocks).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Errorf("not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	return r
}

func (h *handler) getChain(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.app.Chain.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *handler) getHead(w http.ResponseWriter, r *http.Request) {
	tail, err := h.app.Chain.Tail(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tail)
}

func (h *handler) postBlock(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		BPM *int64 `json:"bpm"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.BPM == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("bpm is required"))
		return
	}

	result, err := h.app.Chain.Append(r.Context(), *payload.BPM)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !result.Committed {
		writeJSON(w, http.StatusConflict, result)
		return
	}
	writeJSON(w, http.StatusCreated, result.Block)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	height, err := h.app.Chain.Height(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "height": height})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	buf, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("serialize response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
