package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/stash/internal/api"
	"github.com/matheus3301/stash/internal/model"
	"github.com/spf13/cobra"
)

var foldersReload bool

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withClient(cmd, func(ctx context.Context, c *api.Client) error {
			resp, err := c.ListFolders(ctx, foldersReload)
			if err != nil {
				return err
			}
			if jsonOut {
				outputJSON(resp)
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\t")
			for _, f := range resp.Folders {
				marker := ""
				if f.ID == resp.ActiveFolder {
					marker = "*"
				}
				fmt.Fprintf(w, "%d%s\t%s\t%s\t\n", f.ID, marker, f.Title, f.Category)
			}
			return w.Flush()
		})
	},
}

// folderCmd builds a command taking a folder id and printing the resulting
// messages.
func folderCmd(use, short string, call func(*api.Client, context.Context, *api.FolderRequest) (*api.MessagesResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <folder-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFolderID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *api.Client) error {
				resp, err := call(c, ctx, &api.FolderRequest{FolderID: id})
				if err != nil {
					return err
				}
				return printMessages(resp.Folder, resp.Messages)
			})
		},
	}
}

var (
	openCmd     = folderCmd("open", "Open a folder, loading its latest messages", (*api.Client).OpenFolder)
	moreCmd     = folderCmd("more", "Load the next page of older messages", (*api.Client).LoadMore)
	messagesCmd = folderCmd("messages", "Show the loaded messages of a folder", (*api.Client).ListMessages)
)

func printMessages(folder model.Folder, msgs []model.Message) error {
	if jsonOut {
		outputJSON(msgs)
		return nil
	}
	if folder.Title != "" {
		fmt.Printf("%s (%d messages)\n", folder.Title, len(msgs))
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, m := range msgs {
		fmt.Fprintf(w, "%d\t%s\t%s\t\n", m.ID, time.Unix(m.Date, 0).Format("2006-01-02 15:04"), summary(m))
	}
	return w.Flush()
}

func summary(m model.Message) string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(m.Text, "\n", " "))
	if m.Edited {
		b.WriteString(" (edited)")
	}
	for _, md := range m.Media {
		fmt.Fprintf(&b, " [%s]", md.Name)
	}
	if wp := m.Webpage; wp != nil {
		if wp.Pending {
			b.WriteString(" <preview pending>")
		} else {
			fmt.Fprintf(&b, " <%s>", wp.Title)
		}
	}
	return b.String()
}

func init() {
	foldersCmd.Flags().BoolVar(&foldersReload, "reload", false, "fetch the folder list again")
	rootCmd.AddCommand(foldersCmd, openCmd, moreCmd, messagesCmd)
}
