package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/matheus3301/stash/internal/api"
	"github.com/matheus3301/stash/internal/lock"
	"github.com/matheus3301/stash/internal/model"
	"github.com/matheus3301/stash/internal/session"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var (
	sessionFlag string
	jsonOut     bool
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "stashctl",
	Short: "Control a stash session daemon",
	Long: `stashctl talks to a running stashd over its Unix socket. It signs the
session in and out, browses folders, and drives message drafts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "session name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
}

func dialSession() (*api.Client, session.Layout, error) {
	sessionName, err := session.ResolveName(sessionFlag)
	if err != nil {
		return nil, session.Layout{}, err
	}
	l := session.LayoutFor(sessionName)
	c, err := api.Dial(l.Socket())
	if err != nil {
		return nil, l, fmt.Errorf("cannot connect to daemon for session %q: %w", sessionName, err)
	}
	return c, l, nil
}

// explainUnavailable replaces an unreachable-daemon error with what the
// session lock says: either nothing runs the session, or the recorded
// holder is not answering.
func explainUnavailable(l session.Layout, err error) error {
	if grpcstatus.Code(err) != codes.Unavailable {
		return err
	}
	h, lerr := lock.Read(l.Dir)
	if lerr != nil {
		return fmt.Errorf("no daemon running for session %q (start one with: stashd --session %s)", l.Name, l.Name)
	}
	return fmt.Errorf("daemon PID %d has held session %q since %s but is not answering: %w",
		h.PID, l.Name, h.Since.Format(time.RFC3339), err)
}

// withClient connects to the session daemon and runs fn with a
// deadline-bound context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *api.Client) error) error {
	c, l, err := dialSession()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return explainUnavailable(l, fn(ctx, c))
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func parseFolderID(s string) (model.FolderID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid folder id %q", s)
	}
	return model.FolderID(id), nil
}

func parseMessageID(s string) (model.MessageID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return model.MessageID(id), nil
}
