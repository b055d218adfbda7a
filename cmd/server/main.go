// Command workbookd serves the workbook assignment API and carries the
// operator commands that go with it.
package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/spf13/cobra"
)

func main() {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if err := newRootCmd().ExecuteContext(ctx); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

func newRootCmd() *cobra.Command {
    var envFile string
    root := &cobra.Command{
        Use:           "workbookd",
        Short:         "Workbook template assignment service",
        SilenceUsage:  true,
        SilenceErrors: true,
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            // a missing .env is fine; real deployments set the environment directly
            if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
                return fmt.Errorf("load %s: %w", envFile, err)
            }
            return nil
        },
    }
    root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
    root.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd())
    return root
}
