package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	"github.com/kirillkom/ora-response-client/internal/core/ports"
)

const maxRequestBytes = 1 << 20

// MetricsProvider exposes request metrics and the scrape endpoint.
type MetricsProvider interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// HealthReporter returns component states shown on /healthz.
type HealthReporter func() map[string]string

type Options struct {
	Metrics        MetricsProvider
	Health         HealthReporter
	Logger         *slog.Logger
	RateLimitRPS   float64
	RateLimitBurst int
}

// Router is the local control surface through which editor collaborators
// push edits and trigger save, upload and submit.
type Router struct {
	editor  ports.ResponseEditor
	options Options
	logger  *slog.Logger
}

func NewRouter(editor ports.ResponseEditor, options Options) *Router {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{editor: editor, options: options, logger: logger}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/response", rt.status)
	mux.HandleFunc("PUT /v1/response/text", rt.updateText)
	mux.HandleFunc("PUT /v1/response/language", rt.selectLanguage)
	mux.HandleFunc("POST /v1/response/files", rt.selectFiles)
	mux.HandleFunc("PUT /v1/response/files/{index}/description", rt.describeFile)
	mux.HandleFunc("POST /v1/response/files/upload", rt.uploadFiles)
	mux.HandleFunc("POST /v1/response/save", rt.save)
	mux.HandleFunc("POST /v1/response/autosave", rt.autosave)
	mux.HandleFunc("POST /v1/response/submit", rt.submit)

	var handler http.Handler = mux
	if rt.options.Metrics != nil {
		mux.Handle("GET /metrics", rt.options.Metrics.Handler())
		handler = rt.options.Metrics.Middleware(handler)
	}
	handler = rateLimitMiddleware(rt.options.RateLimitRPS, rt.options.RateLimitBurst, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type submitResponse struct {
	Outcome domain.SubmitOutcome   `json:"outcome"`
	Status  domain.WorkspaceStatus `json:"status"`
}

type autosaveResponse struct {
	Issued bool                   `json:"issued"`
	Status domain.WorkspaceStatus `json:"status"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.options.Health != nil {
		components := rt.options.Health()
		payload["components"] = components
		for _, state := range components {
			if state == "open" {
				payload["status"] = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.editor.Status())
}

func (rt *Router) updateText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == nil {
		writeBadRequest(w, "text is required")
		return
	}
	rt.editor.UpdateText(*req.Text)
	writeJSON(w, http.StatusOK, rt.editor.Status())
}

func (rt *Router) selectLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language *string `json:"language"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Language == nil {
		writeBadRequest(w, "language is required")
		return
	}
	rt.editor.SelectLanguage(*req.Language)
	writeJSON(w, http.StatusOK, rt.editor.Status())
}

func (rt *Router) selectFiles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := rt.editor.SelectFiles(r.Context(), req.Paths); err != nil {
		rt.writeError(w, r, "select_files", err)
		return
	}
	writeJSON(w, http.StatusOK, rt.editor.Status())
}

func (rt *Router) describeFile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		writeBadRequest(w, "file index must be a non-negative integer")
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := rt.editor.DescribeFile(index, req.Description); err != nil {
		rt.writeError(w, r, "describe_file", err)
		return
	}
	writeJSON(w, http.StatusOK, rt.editor.Status())
}

func (rt *Router) uploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := rt.editor.UploadFiles(r.Context()); err != nil {
		rt.writeError(w, r, "upload_files", err)
		return
	}
	writeJSON(w, http.StatusOK, rt.editor.Status())
}

func (rt *Router) save(w http.ResponseWriter, r *http.Request) {
	if err := rt.editor.Save(r.Context()); err != nil {
		rt.writeError(w, r, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, rt.editor.Status())
}

func (rt *Router) autosave(w http.ResponseWriter, r *http.Request) {
	issued, err := rt.editor.AutoSave(r.Context())
	if err != nil {
		rt.writeError(w, r, "autosave", err)
		return
	}
	writeJSON(w, http.StatusOK, autosaveResponse{Issued: issued, Status: rt.editor.Status()})
}

func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	outcome, err := rt.editor.Submit(r.Context())
	if err != nil {
		rt.writeError(w, r, "submit", err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Outcome: outcome, Status: rt.editor.Status()})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("operation_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: domain.UserMessage(err), Kind: errorKind(err)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		msg := "invalid json"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		} else if strings.HasPrefix(err.Error(), "json: unknown field") {
			msg = err.Error()
		}
		writeBadRequest(w, msg)
		return false
	}
	return true
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: "invalid_request"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
