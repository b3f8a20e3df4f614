package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/stash/internal/api"
	"github.com/spf13/cobra"
)

var logoutRevoke bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Status(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				outputJSON(resp)
				return nil
			}
			fmt.Printf("Session: %s\n", resp.Session)
			fmt.Printf("Status:  %s\n", resp.Status)
			if resp.User != nil {
				fmt.Printf("User:    %s (%d)\n", resp.User.Name, resp.User.ID)
			}
			if resp.ActiveFolder != 0 {
				fmt.Printf("Folder:  %d\n", resp.ActiveFolder)
			}
			fmt.Printf("Uploads: %d\n", resp.Uploads)
			fmt.Printf("Pushes:  %d\n", resp.Pushes)
			fmt.Printf("Uptime:  %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).String())
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign the session in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.LogIn(ctx)
			if err != nil {
				return err
			}
			return printSession(resp)
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign the session out and drop its state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.LogOut(ctx, logoutRevoke)
			if err != nil {
				return err
			}
			return printSession(resp)
		})
	},
}

func printSession(resp *api.SessionResponse) error {
	if jsonOut {
		outputJSON(resp)
		return nil
	}
	fmt.Printf("Status: %s\n", resp.Status)
	return nil
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutRevoke, "revoke", false, "also invalidate the stored credentials")
	rootCmd.AddCommand(statusCmd, loginCmd, logoutCmd)
}
