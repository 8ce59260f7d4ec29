package domain

import "time"

// SubmissionAck is the exchange's immediate response to the live order call.
// Filled is true only when the exchange reports a full fill at submission
// time.
type SubmissionAck struct {
	ExchangeOrderID string
	Status          string
	Filled          bool
}

// FlattenOrderGroups converts an order tree into persistable rows. Traversal
// is the primary batch in submission order, then each sub-list batch in
// sub-list order. The first leg of a group's primary batch takes its status
// from the submission ack; every other leg stays at the pending default and
// is reconciled later. Records inherit market/symbol from their group and
// carry the intent's order/parent ids so dependent legs can be correlated.
func FlattenOrderGroups(groups []OrderGroup, ack SubmissionAck, brokerID string) []OrderRecord {
	now := time.Now()
	var records []OrderRecord
	for _, group := range groups {
		for i, intent := range group.BatchOrders {
			rec := recordFromIntent(group, intent, brokerID, now)
			if i == 0 && ack.Filled {
				rec.Status = OrderStatusFilled
			}
			records = append(records, rec)
		}
		for _, sub := range group.SubOrderList {
			for _, intent := range sub.BatchOrders {
				records = append(records, recordFromIntent(group, intent, brokerID, now))
			}
		}
	}
	return records
}

func recordFromIntent(group OrderGroup, intent OrderIntent, brokerID string, now time.Time) OrderRecord {
	return OrderRecord{
		ID:            intent.OrderID,
		ParentOrderID: intent.ParentOrderID,
		BrokerID:      brokerID,
		Market:        group.Market,
		Symbol:        group.Symbol,
		Side:          intent.Side,
		Type:          intent.Type,
		Quantity:      intent.Quantity,
		Price:         intent.Price,
		StopPrice:     intent.StopPrice,
		Status:        OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
