package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/dorm-management/internal/app"
	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/repository"
	"github.com/iliyamo/dorm-management/internal/service"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo room types, rooms, students, contracts and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			db, err := e.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			a := app.New(e.cfg, db, e.log)
			_, total, err := a.Repos.RoomTypes.List(cmd.Context(), repository.NewPage(1, 1))
			if err != nil {
				return err
			}
			if total > 0 {
				fmt.Println("Database already has room types; skipping seed.")
				return nil
			}
			today := service.SystemToday(e.cfg.Location)()
			if err := seed(cmd.Context(), a, today); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			e.purgeCache(cmd.Context())
			fmt.Println("Seed data loaded.")
			return nil
		},
	}
}

type seedRoom struct {
	number   string
	typeName string
	capacity int
}

// seed goes through the same services as the API, so room statuses and
// invoice totals are derived rather than written.
func seed(ctx context.Context, a *app.App, today model.Date) error {
	types := []model.RoomType{
		{Name: "Single", RentPrice: 45000},
		{Name: "Double", RentPrice: 35000},
		{Name: "Deluxe", RentPrice: 55000},
		{Name: "Suite", RentPrice: 65000},
	}
	typeIDs := map[string]uint64{}
	for i := range types {
		if err := a.Repos.RoomTypes.Create(ctx, &types[i]); err != nil {
			return fmt.Errorf("room type %s: %w", types[i].Name, err)
		}
		typeIDs[types[i].Name] = types[i].ID
	}

	rooms := []seedRoom{
		{"101", "Single", 1},
		{"102", "Double", 2},
		{"103", "Deluxe", 1},
		{"104", "Suite", 2},
		{"201", "Single", 1},
	}
	roomIDs := make([]uint64, 0, len(rooms))
	for _, r := range rooms {
		rm, err := a.Services.Rooms.Create(ctx, service.RoomInput{
			RoomTypeID:   typeIDs[r.typeName],
			RoomNumber:   r.number,
			MaxOccupancy: r.capacity,
		})
		if err != nil {
			return fmt.Errorf("room %s: %w", r.number, err)
		}
		roomIDs = append(roomIDs, rm.ID)
	}

	students := []model.Student{
		{FullName: "John Doe", Gender: model.GenderMale, PhoneNumber: "1234567890"},
		{FullName: "Jane Smith", Gender: model.GenderFemale, PhoneNumber: "2345678901"},
		{FullName: "Michael Johnson", Gender: model.GenderMale, PhoneNumber: "3456789012"},
		{FullName: "Emily Brown", Gender: model.GenderFemale, PhoneNumber: "4567890123"},
		{FullName: "David Wilson", Gender: model.GenderMale, PhoneNumber: "5678901234"},
	}
	for i := range students {
		if err := a.Repos.Students.Create(ctx, &students[i]); err != nil {
			return fmt.Errorf("student %s: %w", students[i].FullName, err)
		}
	}

	contractIDs := make([]uint64, 0, len(students))
	for i := range students {
		c, err := a.Services.Contracts.Create(ctx, service.Proposal{
			StudentID: students[i].ID,
			RoomID:    roomIDs[i],
			Start:     today.AddDays(-30 * (i + 1)),
			End:       today.AddDays(365 - 30*(i+1)),
		})
		if err != nil {
			return fmt.Errorf("contract for %s: %w", students[i].FullName, err)
		}
		contractIDs = append(contractIDs, c.ID)
	}

	services := []model.Service{
		{Name: "Internet", UnitPrice: 3000},
		{Name: "Laundry", UnitPrice: 1500},
		{Name: "Cleaning", UnitPrice: 5000},
		{Name: "Parking", UnitPrice: 7500},
		{Name: "Utilities", UnitPrice: 10000},
	}
	for i := range services {
		if err := a.Repos.Services.Create(ctx, &services[i]); err != nil {
			return fmt.Errorf("service %s: %w", services[i].Name, err)
		}
	}

	month, year := int(today.Month()), today.Year()
	for i, contractID := range contractIDs {
		u, err := a.Services.Usages.Create(ctx, service.UsageInput{
			ContractID: contractID,
			ServiceID:  services[i].ID,
			Quantity:   1 + i%2,
			UsageMonth: month,
			UsageYear:  year,
		})
		if err != nil {
			return fmt.Errorf("usage for contract %d: %w", contractID, err)
		}
		_, err = a.Services.Invoices.Create(ctx, service.InvoiceInput{
			CreatedDate: today,
			DueDate:     today.AddDays(30),
			UsageIDs:    []uint64{u.ID},
		})
		if err != nil {
			return fmt.Errorf("invoice for usage %d: %w", u.ID, err)
		}
	}
	return nil
}
