package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// RegularizationCSV renders the statement lines followed by its totals.
func RegularizationCSV(s Statement) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"Expense ID", "Date", "Category", "Label", "Recoverable"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, line := range s.Lines {
		row := []string{
			strconv.FormatInt(line.ExpenseID, 10),
			line.DateOccurred.Format(time.DateOnly),
			string(line.Category),
			line.Label,
			Cents(line.AmountRecoverable),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	totals := [][]string{
		{"", "", "", "Total recoverable expenses", Cents(s.TotalRecoverableExpensesCents)},
		{"", "", "", "Provisions received", Cents(s.TotalProvisionsReceivedCents)},
		{"", "", "", "Balance", Cents(s.BalanceCents)},
	}
	if err := writer.WriteAll(totals); err != nil {
		return nil, fmt.Errorf("failed to write CSV totals: %w", err)
	}

	return buf.Bytes(), nil
}
