// Package app assembles repositories and services on top of one database
// handle. The HTTP server and dormctl both start from here.
package app

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/config"
	"github.com/iliyamo/dorm-management/internal/database"
	"github.com/iliyamo/dorm-management/internal/queue"
	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/service"
)

type Repos struct {
	Students  *repository.StudentRepo
	RoomTypes *repository.RoomTypeRepo
	Rooms     *repository.RoomRepo
	Contracts *repository.ContractRepo
	Services  *repository.ServiceRepo
	Usages    *repository.ServiceUsageRepo
	Invoices  *repository.InvoiceRepo
	Users     *repository.UserRepo
}

type Services struct {
	Rooms     *service.RoomService
	Contracts *service.ContractService
	Usages    *service.UsageService
	Invoices  *service.InvoiceService
	Catalog   *service.CatalogService
}

type App struct {
	DB       *sql.DB
	Tx       *database.TxRunner
	Repos    Repos
	Services Services
}

// New wires everything. Events go to RabbitMQ only when cfg.EventsEnabled.
func New(cfg config.Config, db *sql.DB, log *zap.Logger) *App {
	tx := database.NewTxRunner(db, log)
	r := Repos{
		Students:  repository.NewStudentRepo(db),
		RoomTypes: repository.NewRoomTypeRepo(db),
		Rooms:     repository.NewRoomRepo(db),
		Contracts: repository.NewContractRepo(db),
		Services:  repository.NewServiceRepo(db),
		Usages:    repository.NewServiceUsageRepo(db),
		Invoices:  repository.NewInvoiceRepo(db),
		Users:     repository.NewUserRepo(db),
	}

	var pub service.EventPublisher
	if cfg.EventsEnabled {
		pub = queue.NewPublisher(cfg.RabbitURL, cfg.EventQueue, log)
	}
	today := service.SystemToday(cfg.Location)

	occ := service.NewOccupancyEvaluator(r.Rooms, r.Contracts)
	guard := service.NewAdmissionGuard(r.Students, r.Rooms, r.Contracts, occ)
	totals := service.NewInvoiceTotals(r.Invoices, r.Usages)

	return &App{
		DB:    db,
		Tx:    tx,
		Repos: r,
		Services: Services{
			Rooms:     service.NewRoomService(tx, r.Rooms, r.Rooms, r.Contracts, occ, today, pub, log),
			Contracts: service.NewContractService(tx, guard, occ, totals, r.Contracts, r.Usages, today, pub, log),
			Usages:    service.NewUsageService(tx, r.Usages, r.Contracts, r.Services, totals, pub, log),
			Invoices:  service.NewInvoiceService(tx, r.Invoices, r.Usages, totals, today, pub, log),
			Catalog:   service.NewCatalogService(tx, r.Services, r.Usages, totals, pub, log),
		},
	}
}
