package main

import (
    "fmt"

    "github.com/spf13/cobra"

    "github.com/iliyamo/workbook-assignment/internal/config"
    "github.com/iliyamo/workbook-assignment/internal/database"
)

func newMigrateCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "migrate",
        Short: "Create missing tables and indexes",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg := config.Load()
            db, dialect, err := openDB(cfg)
            if err != nil {
                return fmt.Errorf("open database: %w", err)
            }
            defer db.Close()
            if err := database.Migrate(cmd.Context(), db, dialect); err != nil {
                return err
            }
            fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", dialect)
            return nil
        },
    }
}
