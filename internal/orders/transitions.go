package orders

import "github.com/hungerdash/hungerdash-backend/pkg/enums"

// allowedTransitions is the order status machine. Terminal states have no
// outgoing edges.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:         {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:      {enums.OrderStatusReadyForPickup},
	enums.OrderStatusReadyForPickup: {enums.OrderStatusPickedUp},
	enums.OrderStatusPickedUp:       {enums.OrderStatusOnTheWay},
	enums.OrderStatusOnTheWay:       {enums.OrderStatusDelivered},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// cancellableStatuses are the only states an order can be cancelled from.
var cancellableStatuses = map[enums.OrderStatus]bool{
	enums.OrderStatusPlaced:    true,
	enums.OrderStatusConfirmed: true,
}
