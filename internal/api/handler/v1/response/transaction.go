package response

// Ack answers commands whose caller only needs the resulting status.
type Ack struct {
	TransactionID uint   `json:"transaction_id"`
	Status        string `json:"status"`
}
