package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Path     string `json:"path"`
	Elements int    `json:"elements"`
	Entries  int    `json:"entries"`
	Strings  int    `json:"strings"`
	Digest   string `json:"digest"`
	LoadedAt string `json:"loaded_at"`
	Watching bool   `json:"watching"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "CedarBib API",
		"version": Version,
		"endpoints": []string{
			"GET /api/health",
			"GET /api/bibliography?format=json|yaml|xml|bib",
			"GET /api/entries",
			"GET /api/strings",
			"GET /api/query?q=...",
			"GET /metrics",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	s.mu.RLock()
	bib := s.bib
	digest := s.digest
	loadedAt := s.loadedAt
	s.mu.RUnlock()

	respond(w, http.StatusOK, HealthInfo{
		Status:   "healthy",
		Version:  Version,
		Uptime:   time.Since(s.startTime).String(),
		Path:     s.cfg.Path,
		Elements: bib.Len(),
		Entries:  len(bib.Entries()),
		Strings:  len(bib.StringConstants()),
		Digest:   digest,
		LoadedAt: loadedAt.UTC().Format(time.RFC3339),
		Watching: s.cfg.Watch,
	})
}

// handleBibliography serves the whole container. The format query parameter
// (or, failing that, the Accept header) selects the representation: json is
// wrapped in the response envelope, while yaml, xml, and bib return the raw
// serialized document.
func (s *Server) handleBibliography(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	bib := s.Bibliography()
	switch format := negotiateFormat(r); format {
	case "json":
		respondList(w, bib.Structured())
	case "yaml":
		data, err := bib.ToYAML()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "SERIALIZE_FAILED", err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
	case "xml":
		data, err := bib.ToXML()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "SERIALIZE_FAILED", err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write(data)
	case "bib":
		w.Header().Set("Content-Type", "application/x-bibtex")
		w.Write([]byte(bib.String()))
	default:
		respondError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT",
			"Supported formats are json, yaml, xml, and bib")
	}
}

// negotiateFormat picks the response format from the format query
// parameter, then the Accept header. JSON is the default.
func negotiateFormat(r *http.Request) string {
	if format := r.URL.Query().Get("format"); format != "" {
		return strings.ToLower(format)
	}
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "yaml"):
		return "yaml"
	case strings.Contains(accept, "xml"):
		return "xml"
	case strings.Contains(accept, "x-bibtex"):
		return "bib"
	}
	return "json"
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	entries := s.Bibliography().Entries()
	data := make([]map[string]any, len(entries))
	for i, entry := range entries {
		data[i] = entry.Structured()
	}
	respondList(w, data)
}

func (s *Server) handleStrings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	constants := s.Bibliography().StringConstants()
	data := make([]map[string]any, len(constants))
	for i, sc := range constants {
		data[i] = sc.Structured()
	}
	respondList(w, data)
}

// handleQuery runs the query engine over the served bibliography. Bad
// queries and unknown fields map to 400; everything else that fails is a
// 500.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, http.StatusBadRequest, "MISSING_QUERY", "Query parameter q is required")
		return
	}

	results, err := s.Bibliography().Query(q)
	if err != nil {
		var queryErr *errors.QueryError
		var fieldErr *errors.UnknownFieldError
		switch {
		case errors.As(err, &queryErr), errors.Is(err, errors.ErrMalformedQuery):
			respondError(w, http.StatusBadRequest, "MALFORMED_QUERY", err.Error())
		case errors.As(err, &fieldErr):
			respondError(w, http.StatusBadRequest, "UNKNOWN_FIELD", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		}
		return
	}

	data := make([]map[string]any, len(results))
	for i, el := range results {
		data[i] = el.Structured()
	}
	respondList(w, data)
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// respondList wraps a slice payload and records its length in the meta.
func respondList(w http.ResponseWriter, data []map[string]any) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     len(data),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
