package test

import "fmt"

// PaymentAnswer renders a gateway answer document the way the gateway
// serializes it, escaped slashes included.
func PaymentAnswer(reservation, status string, amountCents int64, currency, transactionID string) string {
	return fmt.Sprintf(`{"shopId":"12345678","orderCycle":"CLOSED","orderStatus":%q,"serverDate":"2026-01-01T00:00:00+00:00","orderDetails":{"orderTotalAmount":%d,"orderCurrency":%q,"mode":"TEST","orderId":%q,"_type":"V4\/OrderDetails"},"transactions":[{"uuid":%q,"status":%q,"_type":"V4\/PaymentTransaction"}],"_type":"V4\/Payment"}`,
		status, amountCents, currency, reservation, transactionID, status)
}
