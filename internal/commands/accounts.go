package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAccountsCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List accounts visible through the Open Finance consent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closer, err := openSession(dir)
			if err != nil {
				return err
			}
			defer closer()

			accounts, err := sess.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				fmt.Println("no accounts")
				return nil
			}
			for _, a := range accounts {
				fmt.Printf("%s\t%s\t%s\n", a.AccountID, a.Number, a.AccountType)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "contas data directory")
	return cmd
}
