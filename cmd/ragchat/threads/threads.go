// Package threadscmder provides the threads command for inspecting
// conversation threads on a running ragchat server.
package threadscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragchat/pkg/client"
	"github.com/papercomputeco/ragchat/pkg/cliui"
	"github.com/papercomputeco/ragchat/pkg/config"
	"github.com/papercomputeco/ragchat/pkg/utils"
)

const threadsLongDesc string = `List conversation threads stored by a running ragchat server.

Use "ragchat threads show <id>" to print a thread's messages and, with
--checkpoints, its checkpoint lineage.

Examples:
  ragchat threads
  ragchat threads show 3f0c9a52-...
  ragchat threads show 3f0c9a52-... --checkpoints`

const threadsShortDesc string = "List and inspect conversation threads"

type threadsCommander struct {
	apiTarget   string
	checkpoints bool
}

func NewThreadsCmd() *cobra.Command {
	cmder := &threadsCommander{}

	cmd := &cobra.Command{
		Use:   "threads",
		Short: threadsShortDesc,
		Long:  threadsLongDesc,
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{config.FlagAPITarget})
			cmder.apiTarget = v.GetString("client.api_target")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.New(cmder.apiTarget)
			if err != nil {
				return err
			}
			return runList(cmd.Context(), c, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVarP(&cmder.apiTarget, config.ClientFlags[config.FlagAPITarget].Name,
		config.ClientFlags[config.FlagAPITarget].Shorthand,
		config.NewDefaultConfig().Client.APITarget,
		config.ClientFlags[config.FlagAPITarget].Description)

	show := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Print the messages of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.New(cmder.apiTarget)
			if err != nil {
				return err
			}
			return runShow(cmd.Context(), c, cmd.OutOrStdout(), args[0], cmder.checkpoints)
		},
	}
	show.Flags().BoolVar(&cmder.checkpoints, "checkpoints", false, "Also print the checkpoint lineage")
	cmd.AddCommand(show)

	return cmd
}

func runList(ctx context.Context, c *client.Client, out io.Writer) error {
	threads, err := c.ListThreads(ctx)
	if err != nil {
		return err
	}

	if len(threads) == 0 {
		fmt.Fprintf(out, "\n  %s No threads yet.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("Threads (%d)", len(threads))))
	for _, id := range threads {
		fmt.Fprintf(out, "  %s\n", cliui.NameStyle.Render(id))
	}
	fmt.Fprintln(out)
	return nil
}

func runShow(ctx context.Context, c *client.Client, out io.Writer, threadID string, withCheckpoints bool) error {
	thread, err := c.GetThread(ctx, threadID)
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("thread %s not found", threadID)
		}
		return err
	}

	fmt.Fprintf(out, "\n  %s %s\n", cliui.HeaderStyle.Render("Thread"), cliui.NameStyle.Render(thread.ThreadID))
	fmt.Fprintf(out, "  %s %s  %s %d\n",
		cliui.KeyStyle.Render("next:"), cliui.ValueStyle.Render(thread.Next),
		cliui.KeyStyle.Render("seq:"), thread.Seq,
	)
	if thread.File != "" {
		fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("file:"), cliui.ValueStyle.Render(thread.File))
	}
	fmt.Fprintln(out)

	width := cliui.Width(out)
	for _, msg := range thread.Messages {
		fmt.Fprintf(out, "  %s %s\n", cliui.RoleStyle(msg.Role).Render("["+msg.Role+"]"), cliui.Wrap(msg.Text, width, "    "))
	}
	fmt.Fprintln(out)

	if !withCheckpoints {
		return nil
	}

	lineage, err := c.Checkpoints(ctx, threadID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s\n\n", cliui.HeaderStyle.Render("Checkpoints"))
	for _, cp := range lineage {
		fmt.Fprintf(out, "  %s %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("#%d", cp.Seq)),
			cliui.KeyStyle.Render(utils.Truncate(cp.ID, 12)),
			cliui.ValueStyle.Render(cp.Next),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages, %s)", cp.Messages, cp.CreatedAt.Format("2006-01-02 15:04:05"))),
		)
	}
	fmt.Fprintln(out)
	return nil
}
