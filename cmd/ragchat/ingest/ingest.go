// Package ingestcmder provides the ingest command for uploading documents to
// a running ragchat server.
package ingestcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragchat/pkg/client"
	"github.com/papercomputeco/ragchat/pkg/cliui"
	"github.com/papercomputeco/ragchat/pkg/config"
)

const ingestLongDesc string = `Upload documents to a running ragchat server.

Each file is stored in the server's upload directory, split into chunks,
embedded and indexed. Chat turns can then scope retrieval to it by file
name. Supported formats: .txt, .md, .markdown and .pdf.

Use --list to print the uploaded documents and --delete to remove one along
with its chunks.

Examples:
  ragchat ingest handbook.pdf
  ragchat ingest notes.md faq.txt
  ragchat ingest --list
  ragchat ingest --delete handbook.pdf`

const ingestShortDesc string = "Upload documents for retrieval"

type ingestCommander struct {
	apiTarget string
	list      bool
	remove    string
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(cmder.apiTarget)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case cmder.list:
				return runList(cmd.Context(), c, out)
			case cmder.remove != "":
				return runDelete(cmd.Context(), c, out, cmder.remove)
			case len(args) == 0:
				return fmt.Errorf("at least one file is required")
			default:
				return runUpload(cmd.Context(), c, out, args)
			}
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().BoolVar(&cmder.list, "list", false, "List uploaded documents")
	cmd.Flags().StringVar(&cmder.remove, "delete", "", "Delete an uploaded document and its chunks")

	return cmd
}

func runUpload(ctx context.Context, c *client.Client, out io.Writer, paths []string) error {
	failed := 0
	for _, path := range paths {
		var chunks int
		err := cliui.Step(out, "Ingesting "+path, func() error {
			resp, err := c.Upload(ctx, path)
			if err != nil {
				return err
			}
			chunks = len(resp.DocumentIDs)
			return nil
		})
		if err != nil {
			failed++
			fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(err.Error()))
			continue
		}
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(fmt.Sprintf("%d chunks indexed", chunks)))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", failed, len(paths))
	}
	return nil
}

func runList(ctx context.Context, c *client.Client, out io.Writer) error {
	files, err := c.ListFiles(ctx)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Fprintf(out, "\n  %s No documents uploaded.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("Documents (%d)", len(files))))
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", cliui.NameStyle.Render(f))
	}
	fmt.Fprintln(out)
	return nil
}

func runDelete(ctx context.Context, c *client.Client, out io.Writer, name string) error {
	if _, err := c.DeleteFile(ctx, name); err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("document %s not found", name)
		}
		return err
	}

	fmt.Fprintf(out, "\n  %s Deleted %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
	return nil
}
