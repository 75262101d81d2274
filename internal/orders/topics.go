package orders

const (
	TopicOrderStatusChanged  = "order.status.changed"
	TopicInventoryDeducted   = "inventory.deducted"
	TopicInventoryRejected   = "inventory.rejected"
	TopicNotificationCreated = "notification.created"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
