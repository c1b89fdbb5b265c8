package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-management/internal/app"
	"github.com/iliyamo/dorm-management/internal/database"
	"github.com/iliyamo/dorm-management/internal/model"
	"github.com/iliyamo/dorm-management/internal/queue"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
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

			n, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Printf("Applied %d schema statements.\n", n)
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an ADMIN account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if username == "" || len(password) < 8 {
				return errors.New("--username is required and --password needs at least 8 characters")
			}
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
			id, err := a.Repos.Users.Create(cmd.Context(), username, password, model.RoleAdmin, e.cfg.BcryptCost)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Printf("Created admin %q (id %d).\n", username, id)
			return nil
		},
	}
	cmd.Flags().String("username", "", "login name")
	cmd.Flags().String("password", "", "password (8 to 72 characters)")
	return cmd
}

func refreshRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-rooms",
		Short: "Recompute every room's status from active contracts",
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

			sum, err := app.New(e.cfg, db, e.log).Services.Rooms.RefreshAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh rooms: %w", err)
			}
			e.purgeCache(cmd.Context())
			fmt.Printf("Checked %d rooms, %d changed.\n", sum.Rooms, sum.Changed)
			return nil
		},
	}
}

func recalcInvoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalc-invoices",
		Short: "Recompute every invoice total from its usages",
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

			sum, err := app.New(e.cfg, db, e.log).Services.Invoices.RecalculateAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("recalculate invoices: %w", err)
			}
			e.purgeCache(cmd.Context())
			fmt.Printf("Checked %d invoices, %d changed.\n", sum.Invoices, sum.Changed)
			return nil
		},
	}
}

func consumeEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume-events",
		Short: "Append domain events from RabbitMQ to the journal file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer func() { _ = e.log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e.log.Info("event-consumer: starting",
				zap.String("queue", e.cfg.EventQueue), zap.String("journal", e.cfg.JournalPath))
			err = queue.NewConsumer(e.cfg.RabbitURL, e.cfg.EventQueue, e.cfg.JournalPath, e.log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
