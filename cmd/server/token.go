package main

import (
    "errors"
    "fmt"
    "os"

    "github.com/spf13/cobra"

    "github.com/iliyamo/workbook-assignment/internal/config"
    "github.com/iliyamo/workbook-assignment/internal/middleware"
    "github.com/iliyamo/workbook-assignment/internal/utils"
)

func newTokenCmd() *cobra.Command {
    var (
        subject string
        role    string
        ttl     int
    )
    cmd := &cobra.Command{
        Use:   "token",
        Short: "Mint an admin access token signed with JWT_SECRET",
        RunE: func(cmd *cobra.Command, args []string) error {
            secret := os.Getenv("JWT_SECRET")
            if secret == "" {
                return errors.New("JWT_SECRET is not set")
            }
            if subject == "" {
                return errors.New("--subject is required")
            }
            if ttl <= 0 {
                ttl = config.AccessTokenTTLMin()
            }
            tok, err := utils.NewAccessToken(secret, subject, role, ttl)
            if err != nil {
                return err
            }
            fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
            fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format("2006-01-02 15:04:05 MST"))
            return nil
        },
    }
    cmd.Flags().StringVar(&subject, "subject", "", "token subject (operator name or id)")
    cmd.Flags().StringVar(&role, "role", middleware.RoleAdmin, "role claim")
    cmd.Flags().IntVar(&ttl, "ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN or 60)")
    return cmd
}
