package model

// Invoice mirrors the `invoices` table. TotalAmount is derived from the
// linked service usages and is never accepted from clients.
type Invoice struct {
	ID          uint64 `json:"id"`           // invoices.id
	CreatedDate Date   `json:"created_date"` // invoices.created_date
	DueDate     Date   `json:"due_date"`     // invoices.due_date
	TotalAmount Money  `json:"total_amount"` // invoices.total_amount
}

// LineItem is one billed usage with its priced amount.
type LineItem struct {
	UsageID     uint64 `json:"service_usage_id"`
	ContractID  uint64 `json:"contract_id"`
	ServiceID   uint64 `json:"service_id"`
	ServiceName string `json:"service_name"`
	UnitPrice   Money  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	UsageMonth  int    `json:"usage_month"`
	UsageYear   int    `json:"usage_year"`
	Amount      Money  `json:"amount"`
}
