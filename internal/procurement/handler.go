package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

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

func (h *Handler) MountOrderRoutes(r chi.Router) {
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{id}", h.showOrder)
	r.Post("/{id}/approve", h.approveOrder)
	r.Post("/{id}/cancel", h.cancelOrder)
	r.Put("/{id}/status", h.overrideOrderStatus)
	r.Put("/{id}/items/{lineID}/status", h.overrideLineStatus)
}

func (h *Handler) MountReceiptRoutes(r chi.Router) {
	r.Get("/", h.listReceipts)
	r.Post("/", h.createReceipt)
	r.Get("/{id}", h.showReceipt)
	r.Put("/{id}", h.updateReceipt)
	r.Delete("/{id}", h.deleteReceipt)
	r.Post("/{id}/verify", h.verifyReceipt)
}

func (h *Handler) MountReturnRoutes(r chi.Router) {
	r.Get("/", h.listReturns)
	r.Post("/", h.createReturn)
	r.Get("/{id}", h.showReturn)
	r.Put("/{id}", h.updateReturn)
	r.Delete("/{id}", h.deleteReturn)
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

type createOrderRequest struct {
	Code       string           `json:"code"`
	SupplierID int64            `json:"supplier_id" validate:"required,gt=0"`
	BranchID   int64            `json:"branch_id" validate:"required,gt=0"`
	Currency   string           `json:"currency" validate:"omitempty,len=3"`
	Remark     string           `json:"remark" validate:"max=500"`
	Draft      bool             `json:"draft"`
	ActorID    int64            `json:"actor_id"`
	Lines      []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	order, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		Code:       req.Code,
		SupplierID: req.SupplierID,
		BranchID:   req.BranchID,
		Currency:   req.Currency,
		Remark:     req.Remark,
		Draft:      req.Draft,
		ActorID:    req.ActorID,
		Lines:      req.Lines,
	})
	if err != nil {
		h.logger.Error("create order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	branchID, _ := strconv.ParseInt(q.Get("branch_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	orders, total, err := h.service.ListOrders(r.Context(), OrderStatus(q.Get("status")), branchID, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"orders": orders, "total": total})
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, order)
}

type actorRequest struct {
	ActorID int64  `json:"actor_id"`
	Remark  string `json:"remark" validate:"max=500"`
}

func (h *Handler) approveOrder(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.ApproveOrder(r.Context(), pathID(r, "id"), req.ActorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "purchase order approved")
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.CancelOrder(r.Context(), pathID(r, "id"), req.ActorID, req.Remark); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "purchase order cancelled")
}

type statusOverrideRequest struct {
	Status  string `json:"status" validate:"required"`
	Remark  string `json:"remark" validate:"max=500"`
	ActorID int64  `json:"actor_id"`
}

func (h *Handler) overrideOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.OverrideOrderStatus(r.Context(), pathID(r, "id"), OrderStatus(req.Status), req.Remark, req.ActorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "purchase order status updated")
}

func (h *Handler) overrideLineStatus(w http.ResponseWriter, r *http.Request) {
	var req statusOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.OverrideLineStatus(r.Context(), pathID(r, "id"), pathID(r, "lineID"), LineStatus(req.Status), req.ActorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "purchase order line status updated")
}

type createReceiptRequest struct {
	OrderID      int64              `json:"order_id" validate:"required,gt=0"`
	BranchID     int64              `json:"branch_id" validate:"required,gt=0"`
	ReceivedDate string             `json:"received_date"`
	ReceivedBy   int64              `json:"received_by"`
	Lines        []ReceiptLineInput `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	var req createReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	input := CreateReceiptInput{
		OrderID:    req.OrderID,
		BranchID:   req.BranchID,
		ReceivedBy: req.ReceivedBy,
		Lines:      req.Lines,
	}
	if req.ReceivedDate != "" {
		t, err := httpx.ParseDate(req.ReceivedDate)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		input.ReceivedDate = t
	}
	receipt, err := h.service.CreateReceipt(r.Context(), input, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Error("create receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, receipt)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID, _ := strconv.ParseInt(q.Get("order_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	activeOnly := q.Get("active") == "true"
	receipts, total, err := h.service.ListReceipts(r.Context(), orderID, activeOnly, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"receipts": receipts, "total": total})
}

func (h *Handler) showReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.GetReceipt(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, receipt)
}

type updateReceiptRequest struct {
	ActorID int64              `json:"actor_id"`
	Lines   []ReceiptLineInput `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) updateReceipt(w http.ResponseWriter, r *http.Request) {
	var req updateReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	receipt, err := h.service.UpdateReceipt(r.Context(), pathID(r, "id"), req.Lines, req.ActorID)
	if err != nil {
		h.logger.Error("update receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, receipt)
}

func (h *Handler) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.DeleteReceipt(r.Context(), pathID(r, "id"), actorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "receipt deleted")
}

func (h *Handler) verifyReceipt(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.VerifyReceipt(r.Context(), pathID(r, "id"), req.ActorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "receipt verified")
}

type createReturnRequest struct {
	ReceiptID  int64             `json:"receipt_id" validate:"required,gt=0"`
	ReturnDate string            `json:"return_date"`
	ActorID    int64             `json:"actor_id"`
	Lines      []ReturnLineInput `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	input := CreateReturnInput{
		ReceiptID: req.ReceiptID,
		ActorID:   req.ActorID,
		Lines:     req.Lines,
	}
	if req.ReturnDate != "" {
		t, err := httpx.ParseDate(req.ReturnDate)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		input.ReturnDate = t
	}
	ret, err := h.service.CreateReturn(r.Context(), input, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Error("create return", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, ret)
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	receiptID, _ := strconv.ParseInt(q.Get("receipt_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	returns, total, err := h.service.ListReturns(r.Context(), receiptID, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"returns": returns, "total": total})
}

func (h *Handler) showReturn(w http.ResponseWriter, r *http.Request) {
	ret, err := h.service.GetReturn(r.Context(), pathID(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, ret)
}

type updateReturnRequest struct {
	ActorID int64             `json:"actor_id"`
	Lines   []ReturnLineInput `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) updateReturn(w http.ResponseWriter, r *http.Request) {
	var req updateReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	ret, err := h.service.UpdateReturn(r.Context(), pathID(r, "id"), req.Lines, req.ActorID)
	if err != nil {
		h.logger.Error("update return", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, ret)
}

func (h *Handler) deleteReturn(w http.ResponseWriter, r *http.Request) {
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("actor_id"), 10, 64)
	if err := h.service.DeleteReturn(r.Context(), pathID(r, "id"), actorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Message(w, "purchase return deleted")
}
