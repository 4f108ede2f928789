package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/contas-dev/contas/internal/session"
)

func newImportCommand() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions into the ledger",
	}
	importCmd.AddCommand(newImportFileCommand())
	importCmd.AddCommand(newImportAccountCommand())
	return importCmd
}

func newImportFileCommand() *cobra.Command {
	var dir, account, format string

	cmd := &cobra.Command{
		Use:   "file <statement>",
		Short: "Import a bank statement file (CSV, XLS or XLSX)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closer, err := openSession(dir)
			if err != nil {
				return err
			}
			defer closer()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening statement: %w", err)
			}
			defer f.Close()

			res := sess.ImportFile(filepath.Base(args[0]), f, account, format)
			printResult(res)
			return res.Err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "contas data directory")
	cmd.Flags().StringVar(&account, "account", "", "account name the statement belongs to (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&format, "format", "", "statement layout name (default: generic)")
	return cmd
}

func newImportAccountCommand() *cobra.Command {
	var dir, from, to string

	cmd := &cobra.Command{
		Use:   "account <account-id>",
		Short: "Pull an account's transactions from the Open Finance API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := parseDateFlag(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toDate, err := parseDateFlag(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			sess, closer, err := openSession(dir)
			if err != nil {
				return err
			}
			defer closer()

			res := sess.ImportAccount(cmd.Context(), args[0], fromDate, toDate)
			printResult(res)
			return res.Err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "contas data directory")
	cmd.Flags().StringVar(&from, "from", "", "start booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end booking date (YYYY-MM-DD)")
	return cmd
}

func parseDateFlag(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func printResult(res session.Result) {
	fmt.Printf("imported %d, skipped %d, duplicates %d, parse errors %d\n",
		res.Imported, res.Skipped, res.Duplicates, res.ParseErrors)
}
