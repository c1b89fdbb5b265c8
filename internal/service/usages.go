package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
)

type UsageInput struct {
	ContractID uint64
	ServiceID  uint64
	InvoiceID  *uint64
	Quantity   int
	UsageMonth int
	UsageYear  int
}

func (in UsageInput) validate() error {
	switch {
	case in.ContractID == 0:
		return &ValidationError{Field: "contract_id", Msg: "is required"}
	case in.ServiceID == 0:
		return &ValidationError{Field: "service_id", Msg: "is required"}
	case in.InvoiceID != nil && *in.InvoiceID == 0:
		return &ValidationError{Field: "invoice_id", Msg: "must be a valid id or null"}
	case in.Quantity < 1:
		return &ValidationError{Field: "quantity", Msg: "must be at least 1"}
	case in.UsageMonth < 1 || in.UsageMonth > 12:
		return &ValidationError{Field: "usage_month", Msg: "must be between 1 and 12"}
	case in.UsageYear < 1:
		return &ValidationError{Field: "usage_year", Msg: "is required"}
	}
	return nil
}

// UsageService writes service usages and keeps the totals of the invoices
// they are billed on in step.
type UsageService struct {
	tx        Transactor
	usages    UsageStore
	contracts ContractStore
	services  ServiceStore
	totals    *InvoiceTotals
	notify    notifier
}

func NewUsageService(tx Transactor, usages UsageStore, contracts ContractStore, services ServiceStore,
	totals *InvoiceTotals, pub EventPublisher, log *zap.Logger) *UsageService {
	return &UsageService{
		tx:        tx,
		usages:    usages,
		contracts: contracts,
		services:  services,
		totals:    totals,
		notify:    notifier{pub: pub, log: log},
	}
}

// checkRefs reports the first missing contract, service or invoice as the
// matching not-found error.
func (s *UsageService) checkRefs(ctx context.Context, tx *sql.Tx, in UsageInput) error {
	if _, err := s.contracts.GetByIDTx(ctx, tx, in.ContractID); err != nil {
		return err
	}
	if _, err := s.services.GetByIDTx(ctx, tx, in.ServiceID); err != nil {
		return err
	}
	if in.InvoiceID != nil {
		if _, err := s.totals.Invoices.LockTx(ctx, tx, *in.InvoiceID); err != nil {
			return err
		}
	}
	return nil
}

func (s *UsageService) Create(ctx context.Context, in UsageInput) (*model.ServiceUsage, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		box outbox
		out *model.ServiceUsage
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		if err := s.checkRefs(ctx, tx, in); err != nil {
			return err
		}
		u := &model.ServiceUsage{
			ContractID: in.ContractID,
			ServiceID:  in.ServiceID,
			InvoiceID:  in.InvoiceID,
			Quantity:   in.Quantity,
			UsageMonth: in.UsageMonth,
			UsageYear:  in.UsageYear,
		}
		if err := s.usages.CreateTx(ctx, tx, u); err != nil {
			return fmt.Errorf("insert service usage: %w", err)
		}
		if err := s.totals.recalculateEach(ctx, tx, &box, derefID(u.InvoiceID)); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

// Update rewrites a usage. When the invoice link moves both the old and
// the new invoice are recalculated.
func (s *UsageService) Update(ctx context.Context, id uint64, in UsageInput) (*model.ServiceUsage, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		box outbox
		out *model.ServiceUsage
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		prev, err := s.usages.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.checkRefs(ctx, tx, in); err != nil {
			return err
		}
		u := &model.ServiceUsage{
			ID:         id,
			ContractID: in.ContractID,
			ServiceID:  in.ServiceID,
			InvoiceID:  in.InvoiceID,
			Quantity:   in.Quantity,
			UsageMonth: in.UsageMonth,
			UsageYear:  in.UsageYear,
		}
		if err := s.usages.UpdateTx(ctx, tx, u); err != nil {
			return fmt.Errorf("update service usage %d: %w", id, err)
		}
		if err := s.totals.recalculateEach(ctx, tx, &box, derefID(prev.InvoiceID), derefID(u.InvoiceID)); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

func (s *UsageService) Delete(ctx context.Context, id uint64) error {
	var box outbox
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		prev, err := s.usages.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.usages.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		return s.totals.recalculateEach(ctx, tx, &box, derefID(prev.InvoiceID))
	})
	if err != nil {
		return err
	}
	s.notify.flush(ctx, &box)
	return nil
}
