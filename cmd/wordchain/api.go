package main

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/CTAG07/wordchain/pkg/markov"
	"github.com/google/uuid"
)

const (
	authHeader      = "wordchain-auth"
	requestIDHeader = "X-Request-ID"

	// maxLearnBody bounds the text accepted by a single learn request.
	maxLearnBody = 32 << 20
)

type contextKey string

const contextKeyLogger = contextKey("logger")

// MarkovAPI serves one model over HTTP. Learning takes the write lock;
// everything else shares the read lock. Saves also hold saveMu so only one
// writes the archive at a time.
type MarkovAPI struct {
	mu        sync.RWMutex
	saveMu    sync.Mutex
	model     *markov.Model
	modelPath string
	apiKey    string
	logger    *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// GenerateResponse is returned by /api/generate.
type GenerateResponse struct {
	Word     string `json:"word"`
	Sentence string `json:"sentence"`
}

// LearnResponse is returned by /api/learn.
type LearnResponse struct {
	Lines    int `json:"lines"`
	Contexts int `json:"contexts"`
}

// NewMarkovAPI creates a new instance of the MarkovAPI.
func NewMarkovAPI(model *markov.Model, modelPath, apiKey string, logger *slog.Logger) *MarkovAPI {
	return &MarkovAPI{
		model:     model,
		modelPath: modelPath,
		apiKey:    apiKey,
		logger:    logger,
	}
}

// RegisterRoutes sets up the routing for all /api endpoints.
func (m *MarkovAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/learn", m.handleLearn)
	mux.HandleFunc("/api/generate", m.handleGenerate)
	mux.HandleFunc("/api/stats", m.handleStats)
	mux.HandleFunc("/api/save", m.handleSave)
	mux.HandleFunc("/api/export", m.handleExport)
	mux.HandleFunc("/api/version", m.handleVersion)
}

// Handler returns the API with request IDs and authentication applied.
func (m *MarkovAPI) Handler() http.Handler {
	mux := http.NewServeMux()
	m.RegisterRoutes(mux)
	return m.withRequestID(m.Authenticate(mux))
}

// withRequestID tags every request with an ID, reusing the caller's
// X-Request-ID when present, and attaches it to the request's logger.
func (m *MarkovAPI) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := m.logger.With(slog.String("request_id", id))
		logger.Debug("Request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

		ctx := context.WithValue(r.Context(), contextKeyLogger, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate checks for the configured key in the "wordchain-auth" header.
// Without a configured key the API is open.
func (m *MarkovAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(authHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			m.requestLogger(r).Warn("Rejected unauthenticated request", "path", r.URL.Path)
			respondWithError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MarkovAPI) requestLogger(r *http.Request) *slog.Logger {
	if logger, ok := r.Context().Value(contextKeyLogger).(*slog.Logger); ok {
		return logger
	}
	return m.logger
}

// handleLearn learns every line of the request body.
func (m *MarkovAPI) handleLearn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxLearnBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	m.mu.Lock()
	lines, err := m.model.LearnFrom(bytes.NewReader(body))
	contexts := m.model.Len()
	m.mu.Unlock()

	if err != nil {
		m.requestLogger(r).Error("Failed to learn request body", "error", err)
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Learning failed: %v", err))
		return
	}
	m.requestLogger(r).Info("Learned lines via API", "lines", lines, "contexts", contexts)
	respondWithJSON(w, http.StatusAccepted, LearnResponse{Lines: lines, Contexts: contexts})
}

// handleGenerate generates a sentence from the "word" query parameter.
func (m *MarkovAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	word := r.URL.Query().Get("word")
	if word == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'word' is required")
		return
	}

	m.mu.RLock()
	sentence, ok := m.model.Generate(word)
	m.mu.RUnlock()

	if !ok {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Nothing to say about '%s'", word))
		return
	}
	respondWithJSON(w, http.StatusOK, GenerateResponse{Word: word, Sentence: sentence})
}

// handleStats returns summary statistics of the model.
func (m *MarkovAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	m.mu.RLock()
	stats := m.model.Stats()
	m.mu.RUnlock()

	respondWithJSON(w, http.StatusOK, stats)
}

// handleSave writes the model to the configured archive.
func (m *MarkovAPI) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	m.saveMu.Lock()
	m.mu.RLock()
	err := m.model.Save(m.modelPath)
	m.mu.RUnlock()
	m.saveMu.Unlock()

	if err != nil {
		m.requestLogger(r).Error("Failed to save model", "path", m.modelPath, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Save failed: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport streams the model as JSON.
func (m *MarkovAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var buf bytes.Buffer
	m.mu.RLock()
	err := m.model.ExportJSON(&buf)
	m.mu.RUnlock()

	if err != nil {
		m.requestLogger(r).Error("Failed to export model", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Export failed: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=\"model.json\"")
	_, _ = buf.WriteTo(w)
}

// handleVersion returns the application's build information.
func (m *MarkovAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
