// Package export serialises a ledger snapshot to CSV. The transform is pure:
// it reads the snapshot and writes rows, touching neither the ledger nor the
// transactions.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"meridian/banking-api/internal/domain"
)

// Filename is the suggested download name for an exported ledger.
const Filename = "transactions.csv"

// header is the fixed column order of the export.
var header = []string{"Type", "Amount", "Timestamp", "Location", "Fraud Flag"}

// WriteCSV writes the header row followed by one row per transaction in
// insertion order. The fraud flag renders as "Yes"/"No".
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, tx := range txs {
		flag := "No"
		if tx.Fraud {
			flag = "Yes"
		}
		row := []string{string(tx.Kind), tx.Amount.String(), tx.Timestamp, tx.Location, flag}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
