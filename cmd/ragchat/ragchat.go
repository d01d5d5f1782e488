// Package ragchatcmder is the root ragchat command.
package ragchatcmder

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/ragchat/cmd/ragchat/auth"
	chatcmder "github.com/papercomputeco/ragchat/cmd/ragchat/chat"
	configcmder "github.com/papercomputeco/ragchat/cmd/ragchat/config"
	ingestcmder "github.com/papercomputeco/ragchat/cmd/ragchat/ingest"
	initcmder "github.com/papercomputeco/ragchat/cmd/ragchat/init"
	servecmder "github.com/papercomputeco/ragchat/cmd/ragchat/serve"
	threadscmder "github.com/papercomputeco/ragchat/cmd/ragchat/threads"
	versioncmder "github.com/papercomputeco/ragchat/cmd/version"
)

const ragchatLongDesc string = `ragchat is a retrieval-augmented chat server.

Each turn is routed through document retrieval over your uploaded files,
optional web search and generation, with every step checkpointed per thread
so interrupted turns resume where they stopped.

Run the server and talk to it using:
  ragchat serve             Run the API server
  ragchat ingest <file>     Upload a document
  ragchat chat              Chat interactively
  ragchat threads           Inspect conversation threads`

const ragchatShortDesc string = "ragchat - retrieval-augmented chat"

// dotEnvFile is loaded from the working directory before configuration is
// resolved. Variables already set in the environment win.
const dotEnvFile = ".env"

func NewRagchatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ragchat",
		Short:         ragchatShortDesc,
		Long:          ragchatLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cobra.OnInitialize(loadDotEnv)

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .ragchat/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(threadscmder.NewThreadsCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

func loadDotEnv() {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("warning: could not load " + dotEnvFile + ": " + err.Error() + "\n")
	}
}
