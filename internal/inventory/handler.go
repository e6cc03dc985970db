package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aurum-erp/aurum/internal/platform/httpx"
	"github.com/aurum-erp/aurum/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/current", h.currentStock)
	r.Get("/current/{branchID}/{itemID}", h.itemStock)
	r.Get("/card", h.stockCard)
	r.Post("/adjustments", h.postAdjustment)
	r.Post("/transfers", h.postTransfer)
}

func (h *Handler) currentStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	branchID, _ := strconv.ParseInt(q.Get("branch_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	balances, total, err := h.service.CurrentStock(r.Context(), branchID, q.Get("search"), limit, offset)
	if err != nil {
		h.logger.Error("list current stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"balances": balances, "total": total})
}

func (h *Handler) itemStock(w http.ResponseWriter, r *http.Request) {
	branchID, _ := strconv.ParseInt(chi.URLParam(r, "branchID"), 10, 64)
	itemID, _ := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	balance, err := h.service.ItemStock(r.Context(), itemID, branchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, balance)
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := StockCardFilter{}
	filter.BranchID, _ = strconv.ParseInt(q.Get("branch_id"), 10, 64)
	filter.ItemID, _ = strconv.ParseInt(q.Get("item_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		filter.To = t
	}
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, entries)
}

type adjustmentRequest struct {
	Code     string  `json:"code"`
	BranchID int64   `json:"branch_id" validate:"required,gt=0"`
	ItemID   int64   `json:"item_id" validate:"required,gt=0"`
	Qty      float64 `json:"qty"`
	Weight   float64 `json:"weight"`
	UnitCost float64 `json:"unit_cost" validate:"gte=0"`
	Note     string  `json:"note" validate:"max=500"`
	ActorID  int64   `json:"actor_id"`
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	entry, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		Code:     req.Code,
		BranchID: req.BranchID,
		ItemID:   req.ItemID,
		Qty:      req.Qty,
		Weight:   req.Weight,
		UnitCost: req.UnitCost,
		Note:     req.Note,
		ActorID:  req.ActorID,
	})
	if err != nil {
		h.logger.Error("post adjustment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, entry)
}

type transferRequest struct {
	Code      string  `json:"code"`
	ItemID    int64   `json:"item_id" validate:"required,gt=0"`
	SrcBranch int64   `json:"src_branch_id" validate:"required,gt=0"`
	DstBranch int64   `json:"dst_branch_id" validate:"required,gt=0,nefield=SrcBranch"`
	Qty       float64 `json:"qty" validate:"gte=0"`
	Weight    float64 `json:"weight" validate:"gte=0"`
	Note      string  `json:"note" validate:"max=500"`
	ActorID   int64   `json:"actor_id"`
}

func (h *Handler) postTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	err := h.service.PostTransfer(r.Context(), TransferInput{
		Code:      req.Code,
		ItemID:    req.ItemID,
		Qty:       req.Qty,
		Weight:    req.Weight,
		SrcBranch: req.SrcBranch,
		DstBranch: req.DstBranch,
		Note:      req.Note,
		ActorID:   req.ActorID,
	})
	if err != nil {
		h.logger.Error("post transfer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "transfer posted")
}
