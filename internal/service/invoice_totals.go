package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/queue"
)

// InvoiceTotals recomputes an invoice's total as the sum of
// quantity x unit price over the usages linked to it.
type InvoiceTotals struct {
	Invoices InvoiceStore
	Usages   UsageStore
}

func NewInvoiceTotals(invoices InvoiceStore, usages UsageStore) *InvoiceTotals {
	return &InvoiceTotals{Invoices: invoices, Usages: usages}
}

// Sum prices line items. An empty slice sums to zero.
func Sum(items []model.LineItem) model.Money {
	var total model.Money
	for _, li := range items {
		total += li.UnitPrice.Mul(li.Quantity)
	}
	return total
}

// RecalculateTx locks the invoice, recomputes its total from the linked
// usages and persists it. The returned event is non-nil only when the
// stored total changed.
func (t *InvoiceTotals) RecalculateTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) (model.Money, *queue.Event, error) {
	inv, err := t.Invoices.LockTx(ctx, tx, invoiceID)
	if err != nil {
		return 0, nil, err
	}
	items, err := t.Usages.LineItemsTx(ctx, tx, invoiceID)
	if err != nil {
		return 0, nil, fmt.Errorf("line items of invoice %d: %w", invoiceID, err)
	}
	total := Sum(items)
	if total == inv.TotalAmount {
		return total, nil, nil
	}
	if err := t.Invoices.SetTotalTx(ctx, tx, invoiceID, total); err != nil {
		return 0, nil, fmt.Errorf("persist total of invoice %d: %w", invoiceID, err)
	}
	ev := queue.NewInvoiceTotalChanged(invoiceID, inv.TotalAmount, total)
	return total, &ev, nil
}

// recalculateEach runs RecalculateTx for every distinct non-zero id in
// ascending order.
func (t *InvoiceTotals) recalculateEach(ctx context.Context, tx *sql.Tx, box *outbox, ids ...uint64) error {
	for _, id := range uniqueSorted(ids) {
		_, ev, err := t.RecalculateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if ev != nil {
			box.add(*ev)
		}
	}
	return nil
}
