// Package chatcmder provides the chat command, an interactive REPL against a
// running ragchat server.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragchat/api"
	"github.com/papercomputeco/ragchat/api/conversations"
	"github.com/papercomputeco/ragchat/pkg/client"
	"github.com/papercomputeco/ragchat/pkg/cliui"
	"github.com/papercomputeco/ragchat/pkg/config"
)

type chatCommander struct {
	apiTarget string
	threadID  string
	file      string
	web       bool

	client *client.Client
	in     io.Reader
	out    io.Writer
}

const chatLongDesc string = `Start an interactive chat session with a running ragchat server.

Every line is one turn on the thread. Without --thread a new thread is
started; pass an existing thread ID to continue it. --file scopes document
retrieval to an uploaded document and --web enables web search.

Commands inside the session:
  /file <name>   Scope retrieval to an uploaded document (None to clear)
  /web on|off    Toggle web search
  /thread        Print the current thread ID
  /resume        Finish an interrupted turn on the thread
  /exit          Quit (Ctrl+D also works)

Examples:
  ragchat chat
  ragchat chat --file handbook.pdf
  ragchat chat --thread 3f0c... --web`

const chatShortDesc string = "Interactive chat with a ragchat server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
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
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.client, err = client.New(cmder.apiTarget)
			if err != nil {
				return err
			}
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.threadID, "thread", "t", "", "Thread ID to continue (default: a new thread)")
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Uploaded document to scope retrieval to")
	cmd.Flags().BoolVar(&cmder.web, "web", false, "Enable web search")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if c.threadID == "" {
		c.threadID = uuid.NewString()
		fmt.Fprintf(c.out, "\n  %s New thread %s\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(c.threadID))
	} else {
		c.printHistory(ctx)
	}
	c.printSettings()
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, cliui.UserStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			if c.command(ctx, input) {
				break
			}
			continue
		}

		out, err := c.client.Chat(ctx, c.threadID, api.ChatRequest{
			Query:           input,
			File:            c.scope(),
			EnableWebSearch: c.web,
		})
		if err != nil {
			fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}
		c.printAnswer(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Fprintln(c.out)
	return nil
}

// command handles a slash command and reports whether the session ends.
func (c *chatCommander) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true
	case "/file":
		c.file = arg
		if strings.EqualFold(c.file, conversations.NoFile) {
			c.file = ""
		}
		c.printSettings()
	case "/web":
		c.web = arg == "on" || arg == "true"
		c.printSettings()
	case "/thread":
		fmt.Fprintf(c.out, "  %s\n\n", cliui.NameStyle.Render(c.threadID))
	case "/resume":
		out, err := c.client.Resume(ctx, c.threadID)
		if err != nil {
			fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
			return false
		}
		c.printAnswer(out)
	default:
		fmt.Fprintf(c.out, "  %s unknown command %s\n\n", cliui.WarnStyle.Render("!"), name)
	}
	return false
}

func (c *chatCommander) scope() string {
	if c.file == "" {
		return conversations.NoFile
	}
	return c.file
}

func (c *chatCommander) printSettings() {
	web := "off"
	if c.web {
		web = "on"
	}
	fmt.Fprintf(c.out, "  %s %s  %s %s\n\n",
		cliui.KeyStyle.Render("File:"), cliui.ValueStyle.Render(c.scope()),
		cliui.KeyStyle.Render("Web search:"), cliui.ValueStyle.Render(web),
	)
}

func (c *chatCommander) printHistory(ctx context.Context) {
	thread, err := c.client.GetThread(ctx, c.threadID)
	if err != nil {
		if client.IsNotFound(err) {
			fmt.Fprintf(c.out, "\n  %s New thread %s\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(c.threadID))
			return
		}
		fmt.Fprintf(c.out, "\n  %s %v\n", cliui.FailMark, err)
		return
	}

	fmt.Fprintf(c.out, "\n  %s Resuming %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.threadID),
		cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(thread.Messages))),
	)
	if thread.File != "" && c.file == "" {
		c.file = filepath.Base(thread.File)
	}
}

func (c *chatCommander) printAnswer(out *conversations.ChatOutput) {
	text := out.Response
	if !cliui.Plain() {
		if rendered, err := cliui.RenderMarkdown(text); err == nil {
			text = rendered
		}
	}

	fmt.Fprintf(c.out, "%s\n%s\n", cliui.AssistantStyle.Render("assistant>"), strings.TrimRight(text, "\n"))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(strings.Join(out.Path, " → ")))
}
