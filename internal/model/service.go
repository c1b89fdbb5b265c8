package model

// Service mirrors the `services` table (billable extras such as laundry).
type Service struct {
	ID        uint64 `json:"id"`         // services.id
	Name      string `json:"name"`       // services.name
	UnitPrice Money  `json:"unit_price"` // services.unit_price
}

// ServiceUsage mirrors the `service_usages` table. InvoiceID is nil until
// the usage is billed.
type ServiceUsage struct {
	ID         uint64  `json:"id"`          // service_usages.id
	ContractID uint64  `json:"contract_id"` // service_usages.contract_id
	ServiceID  uint64  `json:"service_id"`  // service_usages.service_id
	InvoiceID  *uint64 `json:"invoice_id"`  // service_usages.invoice_id (nullable)
	Quantity   int     `json:"quantity"`    // service_usages.quantity
	UsageMonth int     `json:"usage_month"` // service_usages.usage_month
	UsageYear  int     `json:"usage_year"`  // service_usages.usage_year
}
