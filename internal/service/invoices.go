package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
)

// InvoiceInput creates or updates an invoice. A zero CreatedDate means
// today. A nil UsageIDs leaves the linked usages alone; a non-nil slice
// replaces them, so an empty slice detaches everything.
type InvoiceInput struct {
	CreatedDate model.Date
	DueDate     model.Date
	UsageIDs    []uint64
}

func (in InvoiceInput) validate() error {
	switch {
	case in.DueDate.IsZero():
		return &ValidationError{Field: "due_date", Msg: "is required"}
	case in.DueDate.Before(in.CreatedDate.Time):
		return &ValidationError{Field: "due_date", Msg: "must not be before created_date"}
	}
	for _, id := range in.UsageIDs {
		if id == 0 {
			return &ValidationError{Field: "service_usage_ids", Msg: "must contain valid ids"}
		}
	}
	return nil
}

// RecalcSummary reports a bulk invoice recalculation.
type RecalcSummary struct {
	Invoices int `json:"invoices"`
	Changed  int `json:"changed"`
}

// InvoiceService writes invoices. The total is never taken from the
// client; it is recomputed from the linked usages inside each write.
type InvoiceService struct {
	tx       Transactor
	invoices InvoiceStore
	usages   UsageStore
	totals   *InvoiceTotals
	today    Today
	notify   notifier
}

func NewInvoiceService(tx Transactor, invoices InvoiceStore, usages UsageStore, totals *InvoiceTotals,
	today Today, pub EventPublisher, log *zap.Logger) *InvoiceService {
	return &InvoiceService{
		tx:       tx,
		invoices: invoices,
		usages:   usages,
		totals:   totals,
		today:    today,
		notify:   notifier{pub: pub, log: log},
	}
}

func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (*model.Invoice, error) {
	if in.CreatedDate.IsZero() {
		in.CreatedDate = s.today()
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		box outbox
		out *model.Invoice
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		inv := &model.Invoice{CreatedDate: in.CreatedDate, DueDate: in.DueDate}
		if err := s.invoices.CreateTx(ctx, tx, inv); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		touched, err := s.attach(ctx, tx, inv.ID, in.UsageIDs)
		if err != nil {
			return err
		}
		if err := s.totals.recalculateEach(ctx, tx, &box, touched...); err != nil {
			return err
		}
		total, ev, err := s.totals.RecalculateTx(ctx, tx, inv.ID)
		if err != nil {
			return err
		}
		if ev != nil {
			box.add(*ev)
		}
		inv.TotalAmount = total
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

func (s *InvoiceService) Update(ctx context.Context, id uint64, in InvoiceInput) (*model.Invoice, error) {
	var (
		box outbox
		out *model.Invoice
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		inv, err := s.invoices.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.CreatedDate.IsZero() {
			in.CreatedDate = inv.CreatedDate
		}
		if err := in.validate(); err != nil {
			return err
		}
		inv.CreatedDate, inv.DueDate = in.CreatedDate, in.DueDate
		if err := s.invoices.UpdateTx(ctx, tx, inv); err != nil {
			return fmt.Errorf("update invoice %d: %w", id, err)
		}
		var touched []uint64
		if in.UsageIDs != nil {
			if touched, err = s.replaceUsages(ctx, tx, id, in.UsageIDs); err != nil {
				return err
			}
		}
		if err := s.totals.recalculateEach(ctx, tx, &box, touched...); err != nil {
			return err
		}
		total, ev, err := s.totals.RecalculateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if ev != nil {
			box.add(*ev)
		}
		inv.TotalAmount = total
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

// attach links the usages to invoiceID and returns the invoices they were
// billed on before, which need recalculating too.
func (s *InvoiceService) attach(ctx context.Context, tx *sql.Tx, invoiceID uint64, usageIDs []uint64) ([]uint64, error) {
	ids := uniqueSorted(usageIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	var previous []uint64
	for _, uid := range ids {
		u, err := s.usages.LockTx(ctx, tx, uid)
		if err != nil {
			return nil, err
		}
		if prev := derefID(u.InvoiceID); prev != invoiceID {
			previous = append(previous, prev)
		}
	}
	if err := s.usages.SetInvoiceTx(ctx, tx, ids, &invoiceID); err != nil {
		return nil, fmt.Errorf("attach usages to invoice %d: %w", invoiceID, err)
	}
	return previous, nil
}

// replaceUsages makes usageIDs the exact set of usages billed on the
// invoice.
func (s *InvoiceService) replaceUsages(ctx context.Context, tx *sql.Tx, invoiceID uint64, usageIDs []uint64) ([]uint64, error) {
	current, err := s.usages.UsageIDsByInvoiceTx(ctx, tx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("usages of invoice %d: %w", invoiceID, err)
	}
	keep := make(map[uint64]struct{}, len(usageIDs))
	for _, id := range usageIDs {
		keep[id] = struct{}{}
	}
	var drop []uint64
	for _, id := range current {
		if _, ok := keep[id]; !ok {
			drop = append(drop, id)
		}
	}
	if err := s.usages.SetInvoiceTx(ctx, tx, drop, nil); err != nil {
		return nil, fmt.Errorf("detach usages from invoice %d: %w", invoiceID, err)
	}
	return s.attach(ctx, tx, invoiceID, usageIDs)
}

// Delete detaches the invoice's usages and removes it. The usages stay.
func (s *InvoiceService) Delete(ctx context.Context, id uint64) error {
	return s.tx.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.invoices.LockTx(ctx, tx, id); err != nil {
			return err
		}
		if err := s.usages.DetachInvoiceTx(ctx, tx, id); err != nil {
			return fmt.Errorf("detach usages from invoice %d: %w", id, err)
		}
		return s.invoices.DeleteTx(ctx, tx, id)
	})
}

// Recalculate recomputes and persists one invoice's total.
func (s *InvoiceService) Recalculate(ctx context.Context, id uint64) (model.Money, error) {
	var (
		box   outbox
		total model.Money
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		t, ev, err := s.totals.RecalculateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if ev != nil {
			box.add(*ev)
		}
		total = t
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.notify.flush(ctx, &box)
	return total, nil
}

// RecalculateAll recomputes every invoice, one transaction each.
func (s *InvoiceService) RecalculateAll(ctx context.Context) (RecalcSummary, error) {
	ids, err := s.invoices.ListIDs(ctx)
	if err != nil {
		return RecalcSummary{}, fmt.Errorf("list invoices: %w", err)
	}
	var sum RecalcSummary
	for _, id := range ids {
		var box outbox
		err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
			box.reset()
			return s.totals.recalculateEach(ctx, tx, &box, id)
		})
		if err != nil {
			return sum, fmt.Errorf("recalculate invoice %d: %w", id, err)
		}
		sum.Invoices++
		sum.Changed += len(box.events)
		s.notify.flush(ctx, &box)
	}
	return sum, nil
}
