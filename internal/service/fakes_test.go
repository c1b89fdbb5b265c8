package service

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/queue"
	"github.com/iliyamo/dorm-management/internal/repository"
)

// memDB is an in-memory stand-in for the MySQL tables. InTx snapshots the
// tables and restores them when fn fails, which is enough to observe
// rollback behaviour without a database.
type memDB struct {
	students  map[uint64]model.Student
	rooms     map[uint64]model.Room
	contracts map[uint64]model.Contract
	services  map[uint64]model.Service
	usages    map[uint64]model.ServiceUsage
	invoices  map[uint64]model.Invoice
	roomTypes map[uint64]model.RoomType
	nextID    uint64
	roomLocks []uint64
}

func newMemDB() *memDB {
	return &memDB{
		students:  map[uint64]model.Student{},
		rooms:     map[uint64]model.Room{},
		contracts: map[uint64]model.Contract{},
		services:  map[uint64]model.Service{},
		usages:    map[uint64]model.ServiceUsage{},
		invoices:  map[uint64]model.Invoice{},
		roomTypes: map[uint64]model.RoomType{},
	}
}

func (m *memDB) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memDB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	snap := memDB{
		students:  maps.Clone(m.students),
		rooms:     maps.Clone(m.rooms),
		contracts: maps.Clone(m.contracts),
		services:  maps.Clone(m.services),
		usages:    maps.Clone(m.usages),
		invoices:  maps.Clone(m.invoices),
	}
	if err := fn(nil); err != nil {
		m.students, m.rooms, m.contracts = snap.students, snap.rooms, snap.contracts
		m.services, m.usages, m.invoices = snap.services, snap.usages, snap.invoices
		return err
	}
	return nil
}

func sortedKeys[V any](mp map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ---- seeding helpers ----

func (m *memDB) addStudent(name string) uint64 {
	id := m.id()
	m.students[id] = model.Student{ID: id, FullName: name, Gender: model.GenderFemale}
	return id
}

func (m *memDB) addRoom(number string, maxOcc int) uint64 {
	if _, ok := m.roomTypes[1]; !ok {
		m.roomTypes[1] = model.RoomType{ID: 1, Name: "Double", RentPrice: 35000}
	}
	id := m.id()
	m.rooms[id] = model.Room{ID: id, RoomTypeID: 1, RoomNumber: number, MaxOccupancy: maxOcc, Status: model.RoomAvailable}
	return id
}

func (m *memDB) addService(name string, price model.Money) uint64 {
	id := m.id()
	m.services[id] = model.Service{ID: id, Name: name, UnitPrice: price}
	return id
}

// ---- stores ----

type memStudents struct{ *memDB }

func (s memStudents) LockTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Student, error) {
	st, ok := s.students[id]
	if !ok {
		return nil, repository.ErrStudentNotFound
	}
	return &st, nil
}

type memRooms struct{ *memDB }

func (s memRooms) CreateTx(_ context.Context, _ *sql.Tx, rm *model.Room) error {
	if _, ok := s.roomTypes[rm.RoomTypeID]; !ok {
		return repository.ErrRoomTypeNotFound
	}
	rm.ID = s.id()
	s.rooms[rm.ID] = *rm
	return nil
}

func (s memRooms) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Room, error) {
	rm, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return &rm, nil
}

func (s memRooms) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	s.roomLocks = append(s.roomLocks, id)
	return s.GetByIDTx(ctx, tx, id)
}

func (s memRooms) UpdateTx(_ context.Context, _ *sql.Tx, rm *model.Room) error {
	cur, ok := s.rooms[rm.ID]
	if !ok {
		return repository.ErrRoomNotFound
	}
	cur.RoomTypeID, cur.RoomNumber, cur.MaxOccupancy = rm.RoomTypeID, rm.RoomNumber, rm.MaxOccupancy
	s.rooms[rm.ID] = cur
	return nil
}

func (s memRooms) SetStatusTx(_ context.Context, _ *sql.Tx, id uint64, status model.RoomStatus) error {
	cur, ok := s.rooms[id]
	if !ok {
		return repository.ErrRoomNotFound
	}
	cur.Status = status
	s.rooms[id] = cur
	return nil
}

func (s memRooms) ListIDs(context.Context) ([]uint64, error) { return sortedKeys(s.rooms), nil }

func (s memRooms) activeCount(roomID uint64, day model.Date) int {
	n := 0
	for _, c := range s.contracts {
		if c.RoomID == roomID && c.ActiveOn(day) {
			n++
		}
	}
	return n
}

func (s memRooms) listItem(rm model.Room) repository.RoomListItem {
	t := s.roomTypes[rm.RoomTypeID]
	return repository.RoomListItem{Room: rm, RoomTypeName: t.Name, RentPrice: t.RentPrice}
}

func (s memRooms) GetListItem(_ context.Context, id uint64) (*repository.RoomListItem, error) {
	rm, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	it := s.listItem(rm)
	return &it, nil
}

func (s memRooms) ListWithActiveCount(_ context.Context, day model.Date) ([]repository.RoomActiveCount, error) {
	var out []repository.RoomActiveCount
	for _, id := range sortedKeys(s.rooms) {
		out = append(out, repository.RoomActiveCount{RoomListItem: s.listItem(s.rooms[id]), Active: s.activeCount(id, day)})
	}
	return out, nil
}

func (s memRooms) Residents(_ context.Context, roomID uint64, activeOn *model.Date) ([]repository.Resident, error) {
	out := []repository.Resident{}
	for _, id := range sortedKeys(s.contracts) {
		c := s.contracts[id]
		if c.RoomID != roomID || (activeOn != nil && !c.ActiveOn(*activeOn)) {
			continue
		}
		out = append(out, repository.Resident{
			ContractID: c.ID, StudentID: c.StudentID, FullName: s.students[c.StudentID].FullName,
			StartDate: c.StartDate, EndDate: c.EndDate,
		})
	}
	return out, nil
}

type memContracts struct{ *memDB }

func (s memContracts) CreateTx(_ context.Context, _ *sql.Tx, c *model.Contract) error {
	c.ID = s.id()
	s.contracts[c.ID] = *c
	return nil
}

func (s memContracts) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Contract, error) {
	c, ok := s.contracts[id]
	if !ok {
		return nil, repository.ErrContractNotFound
	}
	return &c, nil
}

func (s memContracts) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Contract, error) {
	return s.GetByIDTx(ctx, tx, id)
}

func (s memContracts) UpdateTx(_ context.Context, _ *sql.Tx, c *model.Contract) error {
	if _, ok := s.contracts[c.ID]; !ok {
		return repository.ErrContractNotFound
	}
	s.contracts[c.ID] = *c
	return nil
}

func (s memContracts) DeleteTx(_ context.Context, _ *sql.Tx, id uint64) error {
	if _, ok := s.contracts[id]; !ok {
		return repository.ErrContractNotFound
	}
	for _, u := range s.usages {
		if u.ContractID == id {
			return repository.ErrInUse
		}
	}
	delete(s.contracts, id)
	return nil
}

func (s memContracts) ListByRoomTx(_ context.Context, _ *sql.Tx, roomID uint64, from model.Date) ([]model.Contract, error) {
	var out []model.Contract
	for _, id := range sortedKeys(s.contracts) {
		c := s.contracts[id]
		if c.RoomID == roomID && !c.EndDate.Before(from.Time) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s memContracts) ListByStudentTx(_ context.Context, _ *sql.Tx, studentID uint64) ([]model.Contract, error) {
	var out []model.Contract
	for _, id := range sortedKeys(s.contracts) {
		if c := s.contracts[id]; c.StudentID == studentID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memServices struct{ *memDB }

func (s memServices) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Service, error) {
	svc, ok := s.services[id]
	if !ok {
		return nil, repository.ErrServiceNotFound
	}
	return &svc, nil
}

func (s memServices) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Service, error) {
	return s.GetByIDTx(ctx, tx, id)
}

func (s memServices) UpdateTx(_ context.Context, _ *sql.Tx, svc *model.Service) error {
	if _, ok := s.services[svc.ID]; !ok {
		return repository.ErrServiceNotFound
	}
	s.services[svc.ID] = *svc
	return nil
}

type memUsages struct{ *memDB }

func (s memUsages) CreateTx(_ context.Context, _ *sql.Tx, u *model.ServiceUsage) error {
	u.ID = s.id()
	s.usages[u.ID] = *u
	return nil
}

func (s memUsages) LockTx(_ context.Context, _ *sql.Tx, id uint64) (*model.ServiceUsage, error) {
	u, ok := s.usages[id]
	if !ok {
		return nil, repository.ErrUsageNotFound
	}
	return &u, nil
}

func (s memUsages) UpdateTx(_ context.Context, _ *sql.Tx, u *model.ServiceUsage) error {
	if _, ok := s.usages[u.ID]; !ok {
		return repository.ErrUsageNotFound
	}
	s.usages[u.ID] = *u
	return nil
}

func (s memUsages) DeleteTx(_ context.Context, _ *sql.Tx, id uint64) error {
	if _, ok := s.usages[id]; !ok {
		return repository.ErrUsageNotFound
	}
	delete(s.usages, id)
	return nil
}

func (s memUsages) ListByContractTx(_ context.Context, _ *sql.Tx, contractID uint64) ([]model.ServiceUsage, error) {
	var out []model.ServiceUsage
	for _, id := range sortedKeys(s.usages) {
		if u := s.usages[id]; u.ContractID == contractID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s memUsages) DeleteByContractTx(_ context.Context, _ *sql.Tx, contractID uint64) (int64, error) {
	var n int64
	for id, u := range s.usages {
		if u.ContractID == contractID {
			delete(s.usages, id)
			n++
		}
	}
	return n, nil
}

func (s memUsages) SetInvoiceTx(_ context.Context, _ *sql.Tx, usageIDs []uint64, invoiceID *uint64) error {
	for _, id := range usageIDs {
		u, ok := s.usages[id]
		if !ok {
			continue
		}
		if invoiceID == nil {
			u.InvoiceID = nil
		} else {
			v := *invoiceID
			u.InvoiceID = &v
		}
		s.usages[id] = u
	}
	return nil
}

func (s memUsages) DetachInvoiceTx(ctx context.Context, tx *sql.Tx, invoiceID uint64) error {
	ids, _ := s.UsageIDsByInvoiceTx(ctx, tx, invoiceID)
	return s.SetInvoiceTx(ctx, tx, ids, nil)
}

func (s memUsages) UsageIDsByInvoiceTx(_ context.Context, _ *sql.Tx, invoiceID uint64) ([]uint64, error) {
	var out []uint64
	for _, id := range sortedKeys(s.usages) {
		if derefID(s.usages[id].InvoiceID) == invoiceID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s memUsages) InvoiceIDsByServiceTx(_ context.Context, _ *sql.Tx, serviceID uint64) ([]uint64, error) {
	seen := map[uint64]bool{}
	var out []uint64
	for _, id := range sortedKeys(s.usages) {
		u := s.usages[id]
		if inv := derefID(u.InvoiceID); u.ServiceID == serviceID && inv != 0 && !seen[inv] {
			seen[inv] = true
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s memUsages) LineItemsTx(_ context.Context, _ *sql.Tx, invoiceID uint64) ([]model.LineItem, error) {
	out := []model.LineItem{}
	for _, id := range sortedKeys(s.usages) {
		u := s.usages[id]
		if derefID(u.InvoiceID) != invoiceID {
			continue
		}
		svc := s.services[u.ServiceID]
		out = append(out, model.LineItem{
			UsageID: u.ID, ContractID: u.ContractID, ServiceID: u.ServiceID, ServiceName: svc.Name,
			UnitPrice: svc.UnitPrice, Quantity: u.Quantity, UsageMonth: u.UsageMonth, UsageYear: u.UsageYear,
			Amount: svc.UnitPrice.Mul(u.Quantity),
		})
	}
	return out, nil
}

type memInvoices struct{ *memDB }

func (s memInvoices) CreateTx(_ context.Context, _ *sql.Tx, inv *model.Invoice) error {
	inv.ID = s.id()
	inv.TotalAmount = 0
	s.invoices[inv.ID] = *inv
	return nil
}

func (s memInvoices) LockTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return nil, repository.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (s memInvoices) UpdateTx(_ context.Context, _ *sql.Tx, inv *model.Invoice) error {
	cur, ok := s.invoices[inv.ID]
	if !ok {
		return repository.ErrInvoiceNotFound
	}
	cur.CreatedDate, cur.DueDate = inv.CreatedDate, inv.DueDate
	s.invoices[inv.ID] = cur
	return nil
}

func (s memInvoices) SetTotalTx(_ context.Context, _ *sql.Tx, id uint64, total model.Money) error {
	cur, ok := s.invoices[id]
	if !ok {
		return repository.ErrInvoiceNotFound
	}
	cur.TotalAmount = total
	s.invoices[id] = cur
	return nil
}

func (s memInvoices) DeleteTx(_ context.Context, _ *sql.Tx, id uint64) error {
	if _, ok := s.invoices[id]; !ok {
		return repository.ErrInvoiceNotFound
	}
	delete(s.invoices, id)
	return nil
}

func (s memInvoices) ListIDs(context.Context) ([]uint64, error) { return sortedKeys(s.invoices), nil }

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

// fixture wires every service over one memDB.
type fixture struct {
	db        *memDB
	pub       *recordingPublisher
	today     model.Date
	contracts *ContractService
	rooms     *RoomService
	usages    *UsageService
	invoices  *InvoiceService
	catalog   *CatalogService
}

func newFixture(today model.Date) *fixture {
	db := newMemDB()
	pub := &recordingPublisher{}
	log := zap.NewNop()
	clock := FixedToday(today)

	students, rooms, contracts := memStudents{db}, memRooms{db}, memContracts{db}
	services, usages, invoices := memServices{db}, memUsages{db}, memInvoices{db}

	occ := NewOccupancyEvaluator(rooms, contracts)
	guard := NewAdmissionGuard(students, rooms, contracts, occ)
	totals := NewInvoiceTotals(invoices, usages)

	return &fixture{
		db:        db,
		pub:       pub,
		today:     today,
		contracts: NewContractService(db, guard, occ, totals, contracts, usages, clock, pub, log),
		rooms:     NewRoomService(db, rooms, rooms, rooms, occ, clock, pub, log),
		usages:    NewUsageService(db, usages, contracts, services, totals, pub, log),
		invoices:  NewInvoiceService(db, invoices, usages, totals, clock, pub, log),
		catalog:   NewCatalogService(db, services, usages, totals, pub, log),
	}
}

func ptr[T any](v T) *T { return &v }
