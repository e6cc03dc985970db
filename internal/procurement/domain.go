package procurement

import (
	"time"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	OrderDraft             OrderStatus = "DRAFT"
	OrderApproved          OrderStatus = "APPROVED"
	OrderPartiallyReceived OrderStatus = "PARTIALLY_RECEIVED"
	OrderCompleted         OrderStatus = "COMPLETED"
	OrderReturned          OrderStatus = "RETURNED"
	OrderCancelled         OrderStatus = "CANCELLED"
)

// Valid reports whether the status is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderDraft, OrderApproved, OrderPartiallyReceived, OrderCompleted, OrderReturned, OrderCancelled:
		return true
	}
	return false
}

// LineStatus is the receipt progress of one purchase order line.
type LineStatus string

const (
	LinePending           LineStatus = "PENDING"
	LinePartiallyReceived LineStatus = "PARTIALLY_RECEIVED"
	LineReceived          LineStatus = "RECEIVED"
)

// Valid reports whether the status is a known line status.
func (s LineStatus) Valid() bool {
	switch s {
	case LinePending, LinePartiallyReceived, LineReceived:
		return true
	}
	return false
}

// ReceiptStatus is the lifecycle state of a goods receipt.
type ReceiptStatus string

const (
	ReceiptDraft     ReceiptStatus = "DRAFT"
	ReceiptReceived  ReceiptStatus = "RECEIVED"
	ReceiptVerified  ReceiptStatus = "VERIFIED"
	ReceiptCancelled ReceiptStatus = "CANCELLED"
)

// PurchaseOrder is the order header with its lines.
type PurchaseOrder struct {
	ID         int64       `json:"id"`
	Code       string      `json:"code"`
	SupplierID int64       `json:"supplier_id"`
	BranchID   int64       `json:"branch_id"`
	Currency   string      `json:"currency"`
	TotalCost  float64     `json:"total_cost"`
	Status     OrderStatus `json:"status"`
	Remark     string      `json:"remark"`
	CreatedBy  int64       `json:"created_by"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Lines      []OrderLine `json:"lines"`
}

// OrderLine is one ordered item within a purchase order. Received amounts
// accumulate from receipts and shrink on returns and reversals.
type OrderLine struct {
	ID             int64      `json:"id"`
	OrderID        int64      `json:"order_id"`
	ItemID         int64      `json:"item_id"`
	Qty            float64    `json:"quantity"`
	Weight         float64    `json:"weight"`
	ReceivedQty    float64    `json:"received_quantity"`
	ReceivedWeight float64    `json:"received_weight"`
	Rate           float64    `json:"rate"`
	Metal          string     `json:"metal"`
	Purity         []string   `json:"purity"`
	Stone          string     `json:"stone"`
	Status         LineStatus `json:"status"`
}

// Receipt is a goods-received note posted against a purchase order.
type Receipt struct {
	ID              int64         `json:"id"`
	Ref             string        `json:"ref"`
	OrderID         int64         `json:"order_id"`
	SupplierID      int64         `json:"supplier_id"`
	BranchID        int64         `json:"branch_id"`
	ReceivedDate    time.Time     `json:"received_date"`
	Status          ReceiptStatus `json:"status"`
	TotalItems      int           `json:"total_items"`
	TotalCost       float64       `json:"total_cost"`
	IsFullyReturned bool          `json:"is_fully_returned"`
	ReceivedBy      int64         `json:"received_by"`
	VerifiedBy      int64         `json:"verified_by"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Lines           []ReceiptLine `json:"lines"`
}

// ReceiptLine is one received item. Descriptive attributes are merged from
// the order line and the item definition at receipt time, and returned
// amounts track how much of the line a purchase return has taken back.
type ReceiptLine struct {
	ID             int64    `json:"id"`
	ReceiptID      int64    `json:"receipt_id"`
	OrderLineID    int64    `json:"order_line_id"`
	ItemID         int64    `json:"item_id"`
	OrderedQty     float64  `json:"ordered_quantity"`
	OrderedWeight  float64  `json:"ordered_weight"`
	Qty            float64  `json:"quantity"`
	Weight         float64  `json:"weight"`
	Cost           float64  `json:"cost"`
	TotalCost      float64  `json:"total_cost"`
	Metal          string   `json:"metal"`
	Purity         []string `json:"purity"`
	Stone          string   `json:"stone"`
	ReturnedQty    float64  `json:"returned_quantity"`
	ReturnedWeight float64  `json:"returned_weight"`
}

// Return is a purchase return posted against one receipt.
type Return struct {
	ID         int64        `json:"id"`
	Ref        string       `json:"ref"`
	ReceiptID  int64        `json:"receipt_id"`
	SupplierID int64        `json:"supplier_id"`
	BranchID   int64        `json:"branch_id"`
	ReturnDate time.Time    `json:"return_date"`
	Status     string       `json:"status"`
	TotalCost  float64      `json:"total_cost"`
	CreatedBy  int64        `json:"created_by"`
	CreatedAt  time.Time    `json:"created_at"`
	Lines      []ReturnLine `json:"lines"`
}

// ReturnLine reverses part of one receipt line.
type ReturnLine struct {
	ID            int64   `json:"id"`
	ReturnID      int64   `json:"return_id"`
	ReceiptLineID int64   `json:"receipt_line_id"`
	ItemID        int64   `json:"item_id"`
	Qty           float64 `json:"return_quantity"`
	Weight        float64 `json:"return_weight"`
	Cost          float64 `json:"cost"`
	TotalCost     float64 `json:"total_cost"`
}

// OrderLineInput is one requested line when creating an order.
type OrderLineInput struct {
	ItemID int64    `json:"item_id" validate:"required,gt=0"`
	Qty    float64  `json:"quantity" validate:"gte=0"`
	Weight float64  `json:"weight" validate:"gte=0"`
	Rate   float64  `json:"rate" validate:"gte=0"`
	Metal  string   `json:"metal"`
	Purity []string `json:"purity"`
	Stone  string   `json:"stone"`
}

// CreateOrderInput is the payload for creating a purchase order.
type CreateOrderInput struct {
	Code       string           `json:"code"`
	SupplierID int64            `json:"supplier_id"`
	BranchID   int64            `json:"branch_id"`
	Currency   string           `json:"currency"`
	Remark     string           `json:"remark"`
	Draft      bool             `json:"draft"`
	ActorID    int64            `json:"actor_id"`
	Lines      []OrderLineInput `json:"lines"`
}

// ReceiptLineInput is one requested line when posting a receipt.
type ReceiptLineInput struct {
	OrderLineID int64   `json:"order_line_id" validate:"required,gt=0"`
	Qty         float64 `json:"quantity" validate:"gte=0"`
	Weight      float64 `json:"weight" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
}

// CreateReceiptInput is the payload for posting a receipt against an order.
type CreateReceiptInput struct {
	OrderID      int64              `json:"order_id"`
	BranchID     int64              `json:"branch_id"`
	ReceivedDate time.Time          `json:"received_date"`
	ReceivedBy   int64              `json:"received_by"`
	Lines        []ReceiptLineInput `json:"lines"`
}

// ReturnLineInput is one requested line when posting a purchase return.
type ReturnLineInput struct {
	ReceiptLineID int64   `json:"receipt_line_id" validate:"required,gt=0"`
	Qty           float64 `json:"return_quantity" validate:"gte=0"`
	Weight        float64 `json:"return_weight" validate:"gte=0"`
}

// CreateReturnInput is the payload for posting a purchase return.
type CreateReturnInput struct {
	ReceiptID  int64             `json:"receipt_id"`
	ReturnDate time.Time         `json:"return_date"`
	ActorID    int64             `json:"actor_id"`
	Lines      []ReturnLineInput `json:"lines"`
}
