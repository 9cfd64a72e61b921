package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/db"
	"github.com/jingkaihe/skillfit/pkg/db/migrations"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "History database maintenance",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show history database migration status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := historyPath(cfg)
		conn, err := db.Open(ctx, path)
		if err != nil {
			return err
		}
		defer conn.Close()

		runner := db.NewMigrationRunner(conn)
		applied, err := runner.AppliedVersions(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}
		appliedMap := make(map[int64]bool, len(applied))
		for _, v := range applied {
			appliedMap[v] = true
		}

		presenter.Section("History Database")
		presenter.Info("Database: " + path)
		all := migrations.All()
		count := 0
		for _, m := range all {
			status := "[ ]"
			if appliedMap[m.Version] {
				status = "[x]"
				count++
			}
			presenter.Info(fmt.Sprintf("%s %d - %s", status, m.Version, m.Description))
		}
		presenter.Info(fmt.Sprintf("Applied: %d/%d migrations", count, len(all)))
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the most recent history migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		conn, err := db.Open(ctx, historyPath(cfg))
		if err != nil {
			return err
		}
		defer conn.Close()

		runner := db.NewMigrationRunner(conn)
		applied, err := runner.AppliedVersions(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to get migration status")
		}
		if len(applied) == 0 {
			presenter.Warning("No migrations to roll back")
			return nil
		}

		last := applied[len(applied)-1]
		if err := runner.Rollback(ctx, migrations.All()); err != nil {
			return errors.Wrap(err, "failed to roll back migration")
		}
		presenter.Success(fmt.Sprintf("Rolled back migration %d", last))
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}
