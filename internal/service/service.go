// Package service holds the dormitory's consistency rules: room occupancy,
// contract admission and invoice totals, together with the write paths
// that must re-apply them in the same transaction as every change.
package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/queue"
)

// Transactor runs fn inside one database transaction. database.TxRunner
// implements it.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// EventPublisher delivers committed domain events. queue.Publisher
// implements it.
type EventPublisher interface {
	Publish(ctx context.Context, events ...queue.Event) error
}

// Today returns the calendar day that "active contract" is judged on.
type Today func() model.Date

// SystemToday reads the wall clock in loc.
func SystemToday(loc *time.Location) Today {
	if loc == nil {
		loc = time.UTC
	}
	return func() model.Date { return model.DateOf(time.Now().In(loc)) }
}

// FixedToday always returns d.
func FixedToday(d model.Date) Today { return func() model.Date { return d } }

type StudentStore interface {
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Student, error)
}

type RoomStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, rm *model.Room) error
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error)
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error)
	UpdateTx(ctx context.Context, tx *sql.Tx, rm *model.Room) error
	SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.RoomStatus) error
	ListIDs(ctx context.Context) ([]uint64, error)
}

type ContractStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, c *model.Contract) error
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Contract, error)
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Contract, error)
	UpdateTx(ctx context.Context, tx *sql.Tx, c *model.Contract) error
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
	ListByRoomTx(ctx context.Context, tx *sql.Tx, roomID uint64, from model.Date) ([]model.Contract, error)
	ListByStudentTx(ctx context.Context, tx *sql.Tx, studentID uint64) ([]model.Contract, error)
}

type ServiceStore interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error)
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error)
	UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Service) error
}

type UsageStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, u *model.ServiceUsage) error
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.ServiceUsage, error)
	UpdateTx(ctx context.Context, tx *sql.Tx, u *model.ServiceUsage) error
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
	ListByContractTx(ctx context.Context, tx *sql.Tx, contractID uint64) ([]model.ServiceUsage, error)
	DeleteByContractTx(ctx context.Context, tx *sql.Tx, contractID uint64) (int64, error)
	SetInvoiceTx(ctx context.Context, tx *sql.Tx, usageIDs []uint64, invoiceID *uint64) error
	DetachInvoiceTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) error
	UsageIDsByInvoiceTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) ([]uint64, error)
	InvoiceIDsByServiceTx(ctx context.Context, tx *sql.Tx, serviceID uint64) ([]uint64, error)
	LineItemsTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) ([]model.LineItem, error)
}

type InvoiceStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error
	LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Invoice, error)
	UpdateTx(ctx context.Context, tx *sql.Tx, inv *model.Invoice) error
	SetTotalTx(ctx context.Context, tx *sql.Tx, id uint64, total model.Money) error
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
	ListIDs(ctx context.Context) ([]uint64, error)
}

// outbox collects the events of one transaction attempt. It is reset at
// the start of every attempt because the transactor may retry.
type outbox struct {
	events []queue.Event
}

func (o *outbox) reset()                 { o.events = o.events[:0] }
func (o *outbox) add(evs ...queue.Event) { o.events = append(o.events, evs...) }

// notifier publishes after commit. Failures are logged, never returned: the
// write has already happened.
type notifier struct {
	pub EventPublisher
	log *zap.Logger
}

func (n notifier) flush(ctx context.Context, o *outbox) {
	if n.pub == nil || len(o.events) == 0 {
		return
	}
	if err := n.pub.Publish(context.WithoutCancel(ctx), o.events...); err != nil {
		n.log.Warn("publish events failed", zap.Int("count", len(o.events)), zap.Error(err))
	}
}
