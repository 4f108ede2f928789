package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/contas-dev/contas/internal/buildinfo"
	"github.com/contas-dev/contas/internal/config"
	"github.com/contas-dev/contas/internal/ledger"
	"github.com/contas-dev/contas/internal/session"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "contas",
		Short:   "Personal finance tracking over bank statements and Open Finance",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newAccountsCommand())

	return rootCmd
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// openSession loads contas.yaml from dir and opens the ledger database.
// The returned closer releases the database handle.
func openSession(dir string) (*session.Session, func(), error) {
	cfg, err := config.Load(configPath(dir))
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(cfg, store, newLogger())
	return sess, func() { store.Close() }, nil
}
