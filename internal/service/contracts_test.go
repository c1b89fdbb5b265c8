package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/queue"
	"github.com/iliyamo/dorm-management/internal/repository"
)

var may10 = model.NewDate(2024, time.May, 10)

func proposal(student, room uint64, start, end model.Date) Proposal {
	return Proposal{StudentID: student, RoomID: room, Start: start, End: end}
}

func TestContractCreate_FillsRoomThenRejects(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	room := f.db.addRoom("101", 2)
	a, b, c := f.db.addStudent("A"), f.db.addStudent("B"), f.db.addStudent("C")
	start, end := model.NewDate(2024, time.January, 1), model.NewDate(2024, time.December, 31)

	_, err := f.contracts.Create(ctx, proposal(a, room, start, end))
	require.NoError(t, err)
	assert.Equal(t, model.RoomAvailable, f.db.rooms[room].Status)

	_, err = f.contracts.Create(ctx, proposal(b, room, start, end))
	require.NoError(t, err)
	assert.Equal(t, model.RoomFull, f.db.rooms[room].Status)

	f.pub.reset()
	_, err = f.contracts.Create(ctx, proposal(c, room, start, end))
	var full *RoomAtCapacityError
	require.ErrorAs(t, err, &full)
	assert.True(t, errors.Is(err, repository.ErrConflict))
	assert.Equal(t, ReasonRoomAtCapacity, full.Reason())
	assert.Equal(t, 2, full.Current)
	assert.Equal(t, 2, full.Max)

	assert.Len(t, f.db.contracts, 2)
	assert.Equal(t, model.RoomFull, f.db.rooms[room].Status)
	assert.Empty(t, f.pub.types(), "rejected admissions publish nothing")
}

func TestContractCreate_PublishesAfterCommit(t *testing.T) {
	f := newFixture(may10)
	room := f.db.addRoom("101", 1)
	st := f.db.addStudent("A")

	c, err := f.contracts.Create(context.Background(), proposal(st, room, may10, may10.AddDays(30)))
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, []string{queue.ContractAdmitted, queue.RoomStatusChanged}, f.pub.types())
	assert.Equal(t, string(model.RoomFull), f.pub.events[1].Status)
	assert.Equal(t, string(model.RoomAvailable), f.pub.events[1].PreviousStatus)
}

func TestContractCreate_StudentAlreadyActive(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	r1, r2 := f.db.addRoom("101", 2), f.db.addRoom("102", 2)
	st := f.db.addStudent("A")

	first, err := f.contracts.Create(ctx, proposal(st, r1, may10.AddDays(-10), may10.AddDays(10)))
	require.NoError(t, err)

	_, err = f.contracts.Create(ctx, proposal(st, r2, may10.AddDays(60), may10.AddDays(90)))
	var active *StudentAlreadyActiveError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, first.ID, active.ContractID)
	assert.Equal(t, ReasonStudentAlreadyActive, active.Reason())
	assert.Len(t, f.db.contracts, 1)
}

func TestContractCreate_RejectsOverlappingFuturePeriods(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	room := f.db.addRoom("101", 3)
	st := f.db.addStudent("A")

	_, err := f.contracts.Create(ctx, proposal(st, room, may10.AddDays(30), may10.AddDays(60)))
	require.NoError(t, err)

	_, err = f.contracts.Create(ctx, proposal(st, room, may10.AddDays(60), may10.AddDays(90)))
	assert.ErrorAs(t, err, new(*StudentAlreadyActiveError), "shared boundary day overlaps")

	_, err = f.contracts.Create(ctx, proposal(st, room, may10.AddDays(61), may10.AddDays(90)))
	assert.NoError(t, err)
}

func TestContractCreate_Validation(t *testing.T) {
	f := newFixture(may10)
	room := f.db.addRoom("101", 1)
	st := f.db.addStudent("A")

	_, err := f.contracts.Create(context.Background(), proposal(st, room, may10, may10.AddDays(-1)))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.contracts.Create(context.Background(), proposal(st, room, model.Date{}, may10))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.db.contracts)
}

func TestContractCreate_UnknownReferences(t *testing.T) {
	f := newFixture(may10)
	room := f.db.addRoom("101", 1)
	st := f.db.addStudent("A")

	_, err := f.contracts.Create(context.Background(), proposal(999, room, may10, may10))
	assert.ErrorIs(t, err, repository.ErrStudentNotFound)

	_, err = f.contracts.Create(context.Background(), proposal(st, 999, may10, may10))
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestContractCreate_FutureContractDoesNotFillRoom(t *testing.T) {
	f := newFixture(may10)
	room := f.db.addRoom("101", 1)
	st := f.db.addStudent("A")

	_, err := f.contracts.Create(context.Background(), proposal(st, room, may10.AddDays(1), may10.AddDays(30)))
	require.NoError(t, err)
	assert.Equal(t, model.RoomAvailable, f.db.rooms[room].Status)
}

func TestContractUpdate_SameRoomExcludesItself(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	room := f.db.addRoom("101", 1)
	st := f.db.addStudent("A")

	c, err := f.contracts.Create(ctx, proposal(st, room, may10.AddDays(-5), may10.AddDays(5)))
	require.NoError(t, err)
	require.Equal(t, model.RoomFull, f.db.rooms[room].Status)

	updated, err := f.contracts.Update(ctx, c.ID, proposal(st, room, may10.AddDays(-5), may10.AddDays(50)))
	require.NoError(t, err)
	assert.Equal(t, may10.AddDays(50), updated.EndDate)
	assert.Equal(t, model.RoomFull, f.db.rooms[room].Status)
}

func TestContractUpdate_MoveRefreshesBothRooms(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	r1, r2 := f.db.addRoom("101", 1), f.db.addRoom("102", 1)
	st := f.db.addStudent("A")

	c, err := f.contracts.Create(ctx, proposal(st, r2, may10.AddDays(-5), may10.AddDays(5)))
	require.NoError(t, err)
	f.db.roomLocks = nil
	f.pub.reset()

	_, err = f.contracts.Update(ctx, c.ID, proposal(st, r1, may10.AddDays(-5), may10.AddDays(5)))
	require.NoError(t, err)
	assert.Equal(t, model.RoomFull, f.db.rooms[r1].Status)
	assert.Equal(t, model.RoomAvailable, f.db.rooms[r2].Status)
	assert.Equal(t, []uint64{r1, r2}, f.db.roomLocks[:2], "rooms are locked in ascending id order")
	assert.Equal(t, []string{queue.ContractUpdated, queue.RoomStatusChanged, queue.RoomStatusChanged}, f.pub.types())
}

func TestContractUpdate_MoveIntoFullRoomRejected(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	r1, r2 := f.db.addRoom("101", 1), f.db.addRoom("102", 1)
	a, b := f.db.addStudent("A"), f.db.addStudent("B")

	_, err := f.contracts.Create(ctx, proposal(a, r1, may10, may10.AddDays(5)))
	require.NoError(t, err)
	c, err := f.contracts.Create(ctx, proposal(b, r2, may10, may10.AddDays(5)))
	require.NoError(t, err)

	_, err = f.contracts.Update(ctx, c.ID, proposal(b, r1, may10, may10.AddDays(5)))
	assert.ErrorAs(t, err, new(*RoomAtCapacityError))
	assert.Equal(t, r2, f.db.contracts[c.ID].RoomID)
}

func TestContractUpdate_StudentSwapIntoOverfullRoomRejected(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	room := f.db.addRoom("101", 2)
	a, b, c := f.db.addStudent("A"), f.db.addStudent("B"), f.db.addStudent("C")
	start, end := may10.AddDays(-5), may10.AddDays(5)

	first, err := f.contracts.Create(ctx, proposal(a, room, start, end))
	require.NoError(t, err)
	_, err = f.contracts.Create(ctx, proposal(b, room, start, end))
	require.NoError(t, err)
	_, err = f.rooms.Update(ctx, room, RoomInput{RoomTypeID: 1, RoomNumber: "101", MaxOccupancy: 1})
	require.NoError(t, err)

	_, err = f.contracts.Update(ctx, first.ID, proposal(c, room, start, end))
	var full *RoomAtCapacityError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 1, full.Current)
	assert.Equal(t, 1, full.Max)
	assert.Equal(t, a, f.db.contracts[first.ID].StudentID)
}

func TestContractUpdate_NotFound(t *testing.T) {
	f := newFixture(may10)
	room := f.db.addRoom("101", 1)
	st := f.db.addStudent("A")
	_, err := f.contracts.Update(context.Background(), 999, proposal(st, room, may10, may10))
	assert.ErrorIs(t, err, repository.ErrContractNotFound)
}

func TestContractDelete_RecalculatesAndFreesRoom(t *testing.T) {
	f := newFixture(may10)
	ctx := context.Background()
	room := f.db.addRoom("101", 1)
	st := f.db.addStudent("A")
	laundry := f.db.addService("Laundry", 1000)

	c, err := f.contracts.Create(ctx, proposal(st, room, may10.AddDays(-5), may10.AddDays(5)))
	require.NoError(t, err)
	inv, err := f.invoices.Create(ctx, InvoiceInput{DueDate: may10.AddDays(30)})
	require.NoError(t, err)
	_, err = f.usages.Create(ctx, UsageInput{ContractID: c.ID, ServiceID: laundry, InvoiceID: &inv.ID, Quantity: 2, UsageMonth: 5, UsageYear: 2024})
	require.NoError(t, err)
	require.Equal(t, model.Money(2000), f.db.invoices[inv.ID].TotalAmount)

	f.pub.reset()
	require.NoError(t, f.contracts.Delete(ctx, c.ID))
	assert.Equal(t, []string{queue.ContractTerminated, queue.RoomStatusChanged, queue.InvoiceTotalChanged}, f.pub.types(),
		"the room is refreshed before invoices are recalculated")
	assert.Empty(t, f.db.contracts)
	assert.Empty(t, f.db.usages)
	assert.Equal(t, model.Money(0), f.db.invoices[inv.ID].TotalAmount)
	assert.Equal(t, model.RoomAvailable, f.db.rooms[room].Status)

	assert.ErrorIs(t, f.contracts.Delete(ctx, c.ID), repository.ErrNotFound)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...queue.Event) error {
	return errors.New("broker down")
}

func TestContractCreate_PublishFailureLoggedOnce(t *testing.T) {
	db := newMemDB()
	core, logs := observer.New(zap.WarnLevel)
	occ := NewOccupancyEvaluator(memRooms{db}, memContracts{db})
	guard := NewAdmissionGuard(memStudents{db}, memRooms{db}, memContracts{db}, occ)
	totals := NewInvoiceTotals(memInvoices{db}, memUsages{db})
	svc := NewContractService(db, guard, occ, totals, memContracts{db}, memUsages{db},
		FixedToday(may10), failingPublisher{}, zap.New(core))

	room, st := db.addRoom("101", 1), db.addStudent("A")
	_, err := svc.Create(context.Background(), proposal(st, room, may10, may10.AddDays(5)))
	require.NoError(t, err, "the write stands even when events cannot be sent")
	assert.Len(t, db.contracts, 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "publish events failed", logs.All()[0].Message)
}
