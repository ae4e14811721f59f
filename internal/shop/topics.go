package shop

import "strconv"

const (
	TopicOrderCreated   = "shop.order.created"
	TopicOrderPaid      = "shop.order.paid"
	TopicOrderCancelled = "shop.order.cancelled"
	TopicOrderExpired   = "shop.order.expired"
	TopicCartExpired    = "shop.cart.expired"
)

// Topics lists every lifecycle stream, in the order events can occur.
func Topics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderCancelled,
		TopicOrderExpired,
		TopicCartExpired,
	}
}

// Partition key = user id, so every event for one shopper stays ordered.
func PartitionKey(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}
