package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matheus3301/stash/internal/api"
	"github.com/matheus3301/stash/internal/model"
	"github.com/spf13/cobra"
)

var (
	draftFiles     []string
	searchFolder   string
	refreshWait    bool
	refreshTimeout time.Duration
)

// submit stores the draft and sends it.
func submit(ctx context.Context, c *api.Client, req *api.SetDraftRequest) error {
	if _, err := c.SetDraft(ctx, req); err != nil {
		return err
	}
	resp, err := c.SubmitDraft(ctx, &api.FolderRequest{FolderID: req.FolderID})
	if err != nil {
		return err
	}
	if jsonOut {
		outputJSON(resp)
		return nil
	}
	if !resp.OK {
		return errors.New("message not sent; the draft was kept, retry with the same command")
	}
	if resp.Draft != nil {
		fmt.Printf("Sent, uploading %d file(s)\n", len(resp.Draft.InputFiles))
		return nil
	}
	fmt.Println("Sent")
	return nil
}

var sendCmd = &cobra.Command{
	Use:   "send <folder-id> <text...>",
	Short: "Send a new message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := parseFolderID(args[0])
		if err != nil {
			return err
		}
		text := strings.Join(args[1:], " ")
		if text == "" && len(draftFiles) == 0 {
			return errors.New("nothing to send")
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			return submit(ctx, c, &api.SetDraftRequest{FolderID: folder, Text: text, Files: draftFiles})
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <folder-id> <message-id> <text...>",
	Short: "Edit a message",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := parseFolderID(args[0])
		if err != nil {
			return err
		}
		id, err := parseMessageID(args[1])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if _, err := c.OpenFolder(ctx, &api.FolderRequest{FolderID: folder}); err != nil {
				return err
			}
			return submit(ctx, c, &api.SetDraftRequest{
				FolderID: folder,
				ID:       id,
				Text:     strings.Join(args[2:], " "),
				Files:    draftFiles,
			})
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <folder-id>",
	Short: "Discard a folder's draft and its uploads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := parseFolderID(args[0])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if _, err := c.CancelDraft(ctx, &api.FolderRequest{FolderID: folder}); err != nil {
				return err
			}
			fmt.Println("Draft discarded")
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <folder-id> <message-id>",
	Short: "Delete a message and its media",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := parseFolderID(args[0])
		if err != nil {
			return err
		}
		id, err := parseMessageID(args[1])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if _, err := c.OpenFolder(ctx, &api.FolderRequest{FolderID: folder}); err != nil {
				return err
			}
			resp, err := c.DeleteMessage(ctx, &api.MessageRequest{FolderID: folder, ID: id})
			if err != nil {
				return err
			}
			if jsonOut {
				outputJSON(resp)
				return nil
			}
			if !resp.OK {
				return fmt.Errorf("message %d not deleted", id)
			}
			fmt.Println("Deleted")
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <from-folder-id> <message-id> <to-folder-id>",
	Short: "Move a message to another folder",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseFolderID(args[0])
		if err != nil {
			return err
		}
		id, err := parseMessageID(args[1])
		if err != nil {
			return err
		}
		to, err := parseFolderID(args[2])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			if _, err := c.OpenFolder(ctx, &api.FolderRequest{FolderID: from}); err != nil {
				return err
			}
			resp, err := c.MoveMessage(ctx, &api.MoveMessageRequest{FromFolderID: from, ID: id, ToFolderID: to})
			if err != nil {
				return err
			}
			if jsonOut {
				outputJSON(resp)
				return nil
			}
			switch {
			case resp.OK:
				fmt.Println("Moved")
			case resp.Result == "duplicated":
				return fmt.Errorf("message copied to %d but still in %d; run: stashctl delete %d %d", to, from, from, id)
			default:
				return fmt.Errorf("move %s", resp.Result)
			}
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search messages of a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var folder model.FolderID
		if searchFolder != "" {
			id, err := parseFolderID(searchFolder)
			if err != nil {
				return err
			}
			folder = id
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Search(ctx, &api.SearchRequest{Query: strings.Join(args, " "), FolderID: folder})
			if err != nil {
				return err
			}
			if !resp.OK {
				return errors.New("search failed")
			}
			return printMessages(model.Folder{}, resp.Messages)
		})
	},
}

var resetSearchCmd = &cobra.Command{
	Use:   "reset-search",
	Short: "Drop the search results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			_, err := c.ResetSearch(ctx)
			return err
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <folder-id> <message-id...>",
	Short: "Refresh messages in one batched request",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, err := parseFolderID(args[0])
		if err != nil {
			return err
		}
		var ids []model.MessageID
		for _, a := range args[1:] {
			id, err := parseMessageID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.Refresh(ctx, &api.RefreshRequest{
				FolderID:  folder,
				IDs:       ids,
				TimeoutMs: refreshTimeout.Milliseconds(),
				Wait:      refreshWait,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				outputJSON(resp)
				return nil
			}
			fmt.Printf("Queued %d of %d\n", len(resp.Accepted), len(ids))
			if refreshWait && !resp.Settled {
				return errors.New("refresh did not settle before the timeout")
			}
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [prefix...]",
	Short: "Stream daemon events",
	Long:  `Stream daemon events, optionally only the kinds starting with a prefix such as "state." or "upload.".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, l, err := dialSession()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		stream, err := c.Watch(cmd.Context(), &api.WatchRequest{Prefixes: args})
		if err != nil {
			return explainUnavailable(l, err)
		}
		for {
			evt, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return explainUnavailable(l, err)
			}
			if jsonOut {
				outputJSON(evt)
				continue
			}
			fmt.Printf("%s %-24s %s\n", time.UnixMilli(evt.OccurredAtUnixMs).Format(time.TimeOnly), evt.Kind, evt.Payload)
		}
	},
}

func init() {
	sendCmd.Flags().StringArrayVar(&draftFiles, "file", nil, "attach a file (repeatable)")
	editCmd.Flags().StringArrayVar(&draftFiles, "file", nil, "attach a file (repeatable)")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "folder to search (default: the open folder)")
	refreshCmd.Flags().BoolVar(&refreshWait, "wait", false, "wait until the refresh settles")
	refreshCmd.Flags().DurationVar(&refreshTimeout, "window", 0, "debounce window (default: daemon config)")

	rootCmd.AddCommand(sendCmd, editCmd, cancelCmd, deleteCmd, moveCmd, searchCmd, resetSearchCmd, refreshCmd, watchCmd)
}
