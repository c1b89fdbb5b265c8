package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/queue"
)

// ContractService is the only write path for contracts. Every write runs
// admission, the row change and the room refresh in one transaction.
type ContractService struct {
	tx        Transactor
	guard     *AdmissionGuard
	occupancy *OccupancyEvaluator
	totals    *InvoiceTotals
	contracts ContractStore
	usages    UsageStore
	today     Today
	notify    notifier
}

func NewContractService(tx Transactor, guard *AdmissionGuard, occ *OccupancyEvaluator, totals *InvoiceTotals,
	contracts ContractStore, usages UsageStore, today Today, pub EventPublisher, log *zap.Logger) *ContractService {
	return &ContractService{
		tx:        tx,
		guard:     guard,
		occupancy: occ,
		totals:    totals,
		contracts: contracts,
		usages:    usages,
		today:     today,
		notify:    notifier{pub: pub, log: log},
	}
}

// Create admits and inserts a new contract, then refreshes its room.
func (s *ContractService) Create(ctx context.Context, p Proposal) (*model.Contract, error) {
	var (
		box outbox
		out *model.Contract
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		today := s.today()
		if err := s.guard.AdmitTx(ctx, tx, p, nil, today); err != nil {
			return err
		}
		c := &model.Contract{StudentID: p.StudentID, RoomID: p.RoomID, StartDate: p.Start, EndDate: p.End}
		if err := s.contracts.CreateTx(ctx, tx, c); err != nil {
			return fmt.Errorf("insert contract: %w", err)
		}
		box.add(queue.NewContractAdmitted(*c))
		if err := s.refreshRooms(ctx, tx, &box, today, c.RoomID); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

// Update re-admits the contract when its student, room or dates change and
// refreshes both the room it left and the room it now occupies.
func (s *ContractService) Update(ctx context.Context, id uint64, p Proposal) (*model.Contract, error) {
	var (
		box outbox
		out *model.Contract
	)
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		today := s.today()
		current, err := s.contracts.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.guard.AdmitTx(ctx, tx, p, current, today); err != nil {
			return err
		}
		c := &model.Contract{ID: id, StudentID: p.StudentID, RoomID: p.RoomID, StartDate: p.Start, EndDate: p.End}
		if err := s.contracts.UpdateTx(ctx, tx, c); err != nil {
			return fmt.Errorf("update contract %d: %w", id, err)
		}
		box.add(queue.NewContractUpdated(*c))
		if err := s.refreshRooms(ctx, tx, &box, today, current.RoomID, c.RoomID); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify.flush(ctx, &box)
	return out, nil
}

// Delete removes the contract together with its service usages. Invoices
// that billed those usages are recalculated and the room is refreshed.
func (s *ContractService) Delete(ctx context.Context, id uint64) error {
	var box outbox
	err := s.tx.InTx(ctx, func(tx *sql.Tx) error {
		box.reset()
		today := s.today()
		c, err := s.contracts.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		usages, err := s.usages.ListByContractTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("list usages of contract %d: %w", id, err)
		}
		invoiceIDs := make([]uint64, 0, len(usages))
		for _, u := range usages {
			invoiceIDs = append(invoiceIDs, derefID(u.InvoiceID))
		}
		if _, err := s.usages.DeleteByContractTx(ctx, tx, id); err != nil {
			return fmt.Errorf("delete usages of contract %d: %w", id, err)
		}
		if err := s.contracts.DeleteTx(ctx, tx, id); err != nil {
			return err
		}
		box.add(queue.NewContractTerminated(*c))
		if err := s.refreshRooms(ctx, tx, &box, today, c.RoomID); err != nil {
			return err
		}
		return s.totals.recalculateEach(ctx, tx, &box, invoiceIDs...)
	})
	if err != nil {
		return err
	}
	s.notify.flush(ctx, &box)
	return nil
}

func (s *ContractService) refreshRooms(ctx context.Context, tx *sql.Tx, box *outbox, today model.Date, roomIDs ...uint64) error {
	for _, id := range uniqueSorted(roomIDs) {
		_, ev, err := s.occupancy.RefreshTx(ctx, tx, id, today)
		if err != nil {
			return fmt.Errorf("refresh room %d: %w", id, err)
		}
		if ev != nil {
			box.add(*ev)
		}
	}
	return nil
}
