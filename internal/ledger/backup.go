package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contas-dev/contas/internal/model"
)

// BackupHeader is the CSV header for ledger backups.
const BackupHeader = "date,description,amount,account,source,category,external_id"

const (
	backupNumFields = 7
	colDate         = 0
	colDesc         = 1
	colAmount       = 2
	colAccount      = 3
	colSource       = 4
	colCategory     = 5
	colExternalID   = 6
)

// ExportCSV writes every stored transaction as a portable CSV backup.
// Categories are exported by name so a restore into a fresh database can
// recreate them.
func (s *Store) ExportCSV(w io.Writer) error {
	rows, err := s.db.Query(
		`SELECT t.date, t.description, t.amount, t.account, t.source, t.external_id,
		        COALESCE(c.name, '')
		   FROM transactions t LEFT JOIN categories c ON t.category_id = c.id
		  ORDER BY t.date, t.id`,
	)
	if err != nil {
		return fmt.Errorf("reading transactions for backup: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(BackupHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for rows.Next() {
		var date, desc, amount, account, source, externalID, catName string
		if err := rows.Scan(&date, &desc, &amount, &account, &source, &externalID, &catName); err != nil {
			return fmt.Errorf("scanning backup row: %w", err)
		}
		row := make([]string, backupNumFields)
		row[colDate] = date
		row[colDesc] = desc
		row[colAmount] = amount
		row[colAccount] = account
		row[colSource] = source
		row[colCategory] = catName
		row[colExternalID] = externalID
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing backup row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return cw.Error()
}

// ImportCSV restores transactions from a backup. Duplicate detection
// applies, so restoring over an intact database adds nothing. Returns the
// number of restored rows.
func (s *Store) ImportCSV(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = backupNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("reading backup CSV: %w", err)
	}
	if len(records) <= 1 {
		return 0, nil
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		t, catName, err := unmarshalBackupRow(rec)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
		if catName != "" {
			id, err := s.CategoryByName(catName, model.KindVariable)
			if err != nil {
				return 0, fmt.Errorf("row %d: %w", i+2, err)
			}
			t.CategoryID = id
		}
		txns = append(txns, t)
	}

	inserted, _, err := s.AppendTransactions(txns)
	if err != nil {
		return 0, fmt.Errorf("restoring transactions: %w", err)
	}
	return inserted, nil
}

func unmarshalBackupRow(record []string) (model.Transaction, string, error) {
	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, "", fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, "", fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}
	return model.Transaction{
		Date:           date,
		Description:    record[colDesc],
		NormalizedDesc: model.NormalizeDesc(record[colDesc]),
		Amount:         amount,
		Account:        record[colAccount],
		Source:         model.Source(record[colSource]),
		ExternalID:     record[colExternalID],
	}, record[colCategory], nil
}
