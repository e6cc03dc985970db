package procurement

const statusEpsilon = 1e-4

// DeriveLineStatus computes a line's receipt progress from its quantities.
// A dimension only counts when the line orders it, so a weight-only line is
// RECEIVED once its weight is in even though its quantity stays zero.
func DeriveLineStatus(line OrderLine) LineStatus {
	qtyOrdered := line.Qty > statusEpsilon
	wtOrdered := line.Weight > statusEpsilon

	qtyDone := !qtyOrdered || line.ReceivedQty >= line.Qty-statusEpsilon
	wtDone := !wtOrdered || line.ReceivedWeight >= line.Weight-statusEpsilon
	if (qtyOrdered || wtOrdered) && qtyDone && wtDone {
		return LineReceived
	}
	if line.ReceivedQty > statusEpsilon || line.ReceivedWeight > statusEpsilon {
		return LinePartiallyReceived
	}
	return LinePending
}

// DeriveOrderStatus computes the overall order status from its lines. The
// result is order-independent: it only looks at the multiset of line states.
// afterReturn distinguishes an order whose received amounts collapsed back
// to zero through returns (RETURNED) from one never received (APPROVED).
func DeriveOrderStatus(lines []OrderLine, afterReturn bool) OrderStatus {
	if len(lines) == 0 {
		return OrderApproved
	}
	allReceived := true
	anyProgress := false
	for _, line := range lines {
		switch DeriveLineStatus(line) {
		case LineReceived:
			anyProgress = true
		case LinePartiallyReceived:
			anyProgress = true
			allReceived = false
		default:
			allReceived = false
		}
	}
	switch {
	case allReceived:
		return OrderCompleted
	case anyProgress:
		return OrderPartiallyReceived
	case afterReturn:
		return OrderReturned
	default:
		return OrderApproved
	}
}
