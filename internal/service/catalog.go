package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
)

type ServiceInput struct {
	Name      string
	UnitPrice model.Money
}

func (in ServiceInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return &ValidationError{Field: "name", Msg: "is required"}
	case in.UnitPrice < 0:
		return &ValidationError{Field: "unit_price", Msg: "must not be negative"}
	}
	return nil
}

// CatalogService updates billable services. A unit price change
// recalculates every invoice that bills a usage of the service.
type CatalogService struct {
	tx       Transactor
	services ServiceStore
	usages   UsageStore
	totals   *InvoiceTotals
	notify   notifier
}

func NewCatalogService(tx Transactor, services ServiceStore, usages UsageStore, totals *InvoiceTotals,
	pub EventPublisher, log *zap.Logger) *CatalogService {
	return &CatalogService{tx: tx, services: services, usages: usages, totals: totals, notify: notifier{pub: pub, log: log}}
}

func (s *CatalogService) UpdateService(ctx context.Context, id uint64, in ServiceInput) (*model.Service, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var (
		box outbox
		out *model.Service
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		svc, err := s.services.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		priceChanged := svc.UnitPrice != in.UnitPrice
		svc.Name = strings.TrimSpace(in.Name)
		svc.UnitPrice = in.UnitPrice
		if err := s.services.UpdateTx(ctx, tx, svc); err != nil {
			return fmt.Errorf("update service %d: %w", id, err)
		}
		if priceChanged {
			ids, err := s.usages.InvoiceIDsByServiceTx(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("invoices billing service %d: %w", id, err)
			}
			if err := s.totals.recalculateEach(ctx, tx, &box, ids...); err != nil {
				return err
			}
		}
		out = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}
