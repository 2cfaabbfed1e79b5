package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"apex-dashboard/internal/views"
	"apex-dashboard/pkg/logging"
)

type viewResponse struct {
	View string `json:"view"`
	Data any    `json:"data"`
}

// ViewHandler serves the dashboard views under /v1/views.
type ViewHandler struct {
	Views *views.Registry
}

func NewViewHandler(r *views.Registry) *ViewHandler {
	return &ViewHandler{Views: r}
}

// List handles GET /v1/views.
func (h *ViewHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"views": h.Views.List()})
}

// Show handles GET /v1/views/{view}.
func (h *ViewHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	v, ok := h.lookup(w, r)
	if !ok {
		return
	}

	data, err := v.Load(ctx, views.NewParams(r.URL.Query()))
	if err != nil {
		h.fail(w, r, v.Name(), err)
		return
	}

	logger.Info("view_loaded",
		zap.String("view", v.Name()),
		zap.Duration("total_latency_ms", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, viewResponse{View: v.Name(), Data: data})
}

// Export handles GET /v1/views/{view}/export?format=csv|json.
func (h *ViewHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	v, ok := h.lookup(w, r)
	if !ok {
		return
	}

	exp, ok := v.(views.Exportable)
	if !ok {
		writeError(w, http.StatusBadRequest, codeNotExportable,
			fmt.Sprintf("view %q cannot be exported", v.Name()))
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = views.FormatCSV
	}
	contentType := views.ContentType(format)
	if contentType == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest,
			fmt.Sprintf("unsupported format %q (want csv or json)", format))
		return
	}

	table, err := exp.Export(ctx, views.NewParams(r.URL.Query()))
	if err != nil {
		h.fail(w, r, v.Name(), err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s.%s"`, v.Name(), format))
	if err := table.Write(w, format); err != nil {
		logger.Warn("export_write_error", zap.String("view", v.Name()), zap.Error(err))
		return
	}

	logger.Info("view_exported",
		zap.String("view", v.Name()),
		zap.String("format", format),
		zap.Int("rows", len(table.Rows)),
	)
}

func (h *ViewHandler) lookup(w http.ResponseWriter, r *http.Request) (views.View, bool) {
	name := chi.URLParam(r, "view")
	v, ok := h.Views.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, fmt.Sprintf("unknown view %q", name))
		return nil, false
	}
	return v, true
}

func (h *ViewHandler) fail(w http.ResponseWriter, r *http.Request, view string, err error) {
	status, code := classify(err)
	logger := logging.L(r.Context())
	fields := []zap.Field{
		zap.String("view", view),
		zap.Int("status", status),
		zap.String("error_code", code),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Warn("view_load_failed", fields...)
	} else {
		logger.Info("view_load_failed", fields...)
	}
	writeError(w, status, code, err.Error())
}
