package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the item catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers item routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listInventory)
	r.Post("/", h.propose)
	r.Get("/pending", h.listPending)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.edit)
		r.Delete("/", h.delete)
		r.Post("/approve", h.approve)
		r.Post("/reject", h.reject)
		r.Get("/edits", h.listEdits)
		r.Put("/qr-code", h.setQRCode)
	})
}

type proposeRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	ImagePath   string          `json:"image_path"`
}

type editRequest struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	BasePrice     decimal.Decimal `json:"base_price"`
	MarkupPercent decimal.Decimal `json:"markup_percent"`
}

type qrCodeRequest struct {
	Path string `json:"path" validate:"required"`
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListInventory(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []InventoryRow{}
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.ProposeItem(r.Context(), httpx.Actor(r), ProposeItemInput{
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		ImagePath:   req.ImagePath,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListPending(r.Context(), httpx.Actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []PendingItem{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	row, err := h.service.GetApproved(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req editRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.EditItem(r.Context(), httpx.Actor(r), id, EditItemInput{
		Name:          req.Name,
		Description:   req.Description,
		BasePrice:     req.BasePrice,
		MarkupPercent: req.MarkupPercent,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), httpx.Actor(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.ApproveItem(r.Context(), httpx.Actor(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.RejectItem(r.Context(), httpx.Actor(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEdits(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	edits, err := h.service.ListEdits(r.Context(), httpx.Actor(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if edits == nil {
		edits = []ItemEdit{}
	}
	httpx.JSON(w, http.StatusOK, edits)
}

func (h *Handler) setQRCode(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req qrCodeRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.SetQRCodePath(r.Context(), id, req.Path); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	problem := httpx.ProblemFor(err)
	if problem.Status >= http.StatusInternalServerError {
		h.logger.Error("catalog request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.WriteProblem(w, problem)
}
