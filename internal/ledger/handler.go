package ledger

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/proposals", h.propose)
	r.Post("/entries", h.record)
	r.Get("/pending", h.listPending)
	r.Get("/approved", h.listApproved)
	r.Post("/clear", h.clear)
	r.Get("/stock/{itemID}", h.stock)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
}

type proposeRequest struct {
	ItemID         int64  `json:"item_id" validate:"gt=0"`
	Type           string `json:"type" validate:"oneof=in out"`
	Quantity       int64  `json:"quantity" validate:"gt=0"`
	CompanyID      int64  `json:"company_id" validate:"gte=0"`
	NewCompanyName string `json:"new_company_name"`
}

type recordRequest struct {
	ItemID    int64  `json:"item_id" validate:"gt=0"`
	Type      string `json:"type" validate:"oneof=in out"`
	Quantity  int64  `json:"quantity" validate:"gt=0"`
	CompanyID int64  `json:"company_id" validate:"gt=0"`
}

type clearRequest struct {
	Confirmation string `json:"confirmation"`
}

type clearResponse struct {
	Removed int64 `json:"removed"`
}

type stockResponse struct {
	ItemID int64 `json:"item_id"`
	Stock  int64 `json:"current_stock"`
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.ProposeTransaction(r.Context(), httpx.Actor(r), ProposeInput{
		ItemID:         req.ItemID,
		Type:           TxType(req.Type),
		Quantity:       req.Quantity,
		CompanyID:      req.CompanyID,
		NewCompanyName: req.NewCompanyName,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.RecordApprovedTransaction(r.Context(), httpx.Actor(r), RecordInput{
		ItemID:    req.ItemID,
		Type:      TxType(req.Type),
		Quantity:  req.Quantity,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListPending(r.Context(), httpx.Actor(r), httpx.BoolQuery(r, "mine", false))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == nil {
		out = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listApproved(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListApproved(r.Context(), httpx.Actor(r), httpx.IntQuery(r, "limit", 100))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if out == nil {
		out = []Entry{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.ClearAllApproved(r.Context(), httpx.Actor(r), req.Confirmation)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clearResponse{Removed: n})
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	n, err := h.service.CurrentStock(r.Context(), itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockResponse{ItemID: itemID, Stock: n})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.ApproveTransaction(r.Context(), httpx.Actor(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.RejectTransaction(r.Context(), httpx.Actor(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	problem := httpx.ProblemFor(err)
	if problem.Status >= http.StatusInternalServerError {
		h.logger.Error("ledger request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.WriteProblem(w, problem)
}
