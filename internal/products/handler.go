package products

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
	"github.com/pedroojr/xml-merch-importer/internal/platform/httpx"
	"github.com/pedroojr/xml-merch-importer/internal/pricing"
)

const maxImportBodyBytes = 10 << 20

// Enqueuer hands an invoice off for background processing.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, xmlData []byte) (string, error)
}

// Handler wires the JSON API for invoice imports and pricing.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueue  Enqueuer
	validate *validator.Validate
	exports  singleflight.Group
}

// NewHandler constructs the products handler. The enqueuer may be nil, in
// which case async imports answer 503.
func NewHandler(logger *slog.Logger, service *Service, enqueue Enqueuer) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		enqueue:  enqueue,
		validate: validator.New(),
	}
}

// MountRoutes registers the import and settings endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "import rate limit exceeded")
		}),
	)

	r.Route("/imports", func(r chi.Router) {
		r.With(limiter).Post("/", h.handleCreateImport)
		r.Get("/", h.handleListImports)
		r.Route("/{importID}", func(r chi.Router) {
			r.Get("/", h.handleGetImport)
			r.Get("/summary", h.handleSummary)
			r.Get("/export.csv", h.handleExportCSV)
			r.Patch("/products/{code}", h.handlePatchProduct)
		})
	})
	r.Get("/settings", h.handleGetSettings)
	r.Put("/settings", h.handlePutSettings)
	r.Get("/columns", h.handleColumns)
}

// columnDescriptor is the wire form of one projection column.
type columnDescriptor struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	Align          string `json:"align"`
	DefaultVisible bool   `json:"defaultVisible"`
}

func (h *Handler) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols := pricing.Columns()
	out := make([]columnDescriptor, 0, len(cols))
	for _, c := range cols {
		out = append(out, columnDescriptor{
			ID:             c.ID,
			Label:          c.Label,
			Align:          string(c.Align),
			DefaultVisible: c.DefaultVisible,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"columns": out})
}

func (h *Handler) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBodyBytes))
	if err != nil {
		httpx.Problem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "invoice exceeds size limit")
		return
	}
	if len(body) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "empty request body")
		return
	}

	if r.URL.Query().Get("async") == "1" {
		if h.enqueue == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "background processing not configured")
			return
		}
		taskID, err := h.enqueue.EnqueueImport(r.Context(), body)
		if err != nil {
			h.logger.Error("enqueue import failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
		return
	}

	detail, err := h.service.ImportInvoice(r.Context(), body)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) handleListImports(w http.ResponseWriter, r *http.Request) {
	imports, err := h.service.ListImports(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"imports": imports})
}

func (h *Handler) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.importID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetImport(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.importID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := h.importID(w, r)
	if !ok {
		return
	}

	type exportPayload struct {
		imp   Import
		items []nfe.Product
	}
	// The winner's result is shared with every concurrent waiter, so the
	// fetch must not die with the winning request's context.
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := h.exports.Do(id.String(), func() (any, error) {
		imp, items, err := h.service.ExportProducts(ctx, id)
		if err != nil {
			return nil, err
		}
		return exportPayload{imp: imp, items: items}, nil
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	payload := v.(exportPayload)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "import-"+id.String()+".csv"))
	if err := WriteProductsCSV(w, payload.imp, payload.items); err != nil {
		h.logger.Error("stream csv export failed", slog.Any("error", err))
	}
}

func (h *Handler) handlePatchProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.importID(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product code is required")
		return
	}

	var patch ProductPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id, code, patch)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// SettingsRequest is the PUT /settings payload.
type SettingsRequest struct {
	ChannelAMarkup float64  `json:"channelAMarkup" validate:"gte=0"`
	ChannelBMarkup float64  `json:"channelBMarkup" validate:"gte=0"`
	RoundingPolicy string   `json:"roundingPolicy" validate:"oneof=ninety fifty none"`
	HiddenCodes    []string `json:"hiddenCodes" validate:"omitempty,dive,min=1"`
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	cfg := pricing.Config{
		ChannelAMarkup: req.ChannelAMarkup,
		ChannelBMarkup: req.ChannelBMarkup,
		Rounding:       pricing.ParsePolicy(req.RoundingPolicy),
	}
	settings, err := h.service.UpdateSettings(r.Context(), cfg, req.HiddenCodes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) importID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "import id must be a UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

// respondError translates domain sentinels onto the transport-level ones
// before handing off to the shared RFC7807 writer.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nfe.ErrMalformedDocument):
		err = fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	case errors.Is(err, ErrImportNotFound), errors.Is(err, ErrProductNotFound):
		err = fmt.Errorf("%w: %s", httpx.ErrNotFound, err)
	case errors.Is(err, ErrDuplicateImport):
		err = fmt.Errorf("%w: %s", httpx.ErrDuplicate, err)
	default:
		h.logger.Error("request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
