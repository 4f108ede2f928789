package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contas-dev/contas/internal/server"
)

func newServeCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closer, err := openSession(dir)
			if err != nil {
				return err
			}
			defer closer()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(sess.Config().Server.Addr, sess, newLogger())
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "contas data directory")
	return cmd
}
