package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/regularization"
)

func sampleRecord() *models.Regularization {
	return &models.Regularization{
		ID:        7,
		Reference: uuid.MustParse("5b0e6c2a-3f0c-4a53-9d0b-1e8f3f1c2d4e"),
		LeaseID:   12,
		Year:      2024,
		Lines: []models.RegularizationLine{
			{ExpenseID: 1, Category: models.CategoryColdWater, Label: "Water, Q1", DateOccurred: models.NewDate(2024, 3, 31), AmountRecoverable: 12000},
			{ExpenseID: 2, Category: models.CategoryElevator, Label: "Lift", DateOccurred: models.NewDate(2024, 9, 30), AmountRecoverable: 8000},
		},
		TotalRecoverableExpensesCents: 20000,
		TotalProvisionsReceivedCents:  18000,
		BalanceCents:                  2000,
	}
}

func TestCents(t *testing.T) {
	t.Parallel()
	require.Equal(t, "20.00", Cents(2000))
	require.Equal(t, "-0.05", Cents(-5))
	require.Equal(t, "0.00", Cents(0))
}

func TestRegularizationCSV(t *testing.T) {
	t.Parallel()

	data, err := RegularizationCSV(FromRecord(sampleRecord()))
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	require.Equal(t, []string{"Expense ID", "Date", "Category", "Label", "Recoverable"}, rows[0])
	require.Equal(t, []string{"1", "2024-03-31", "COLD_WATER", "Water, Q1", "120.00"}, rows[1])
	require.Equal(t, "200.00", rows[3][4])
	require.Equal(t, "180.00", rows[4][4])
	require.Equal(t, "20.00", rows[5][4])
}

func TestRegularizationChart(t *testing.T) {
	t.Parallel()

	t.Run("renders png", func(t *testing.T) {
		t.Parallel()
		png, err := RegularizationChart(FromRecord(sampleRecord()))
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	})

	t.Run("no expenses", func(t *testing.T) {
		t.Parallel()
		_, err := RegularizationChart(Statement{Year: 2024})
		require.Error(t, err)
	})
}

func TestStatement(t *testing.T) {
	t.Parallel()

	st := FromRecord(sampleRecord())
	require.Equal(t, "regularization_lease12_2024.csv", st.CSVFilename())
	require.Equal(t, "regularization_lease12_2024.png", st.ChartFilename())
	require.Contains(t, st.Summary(), "Tenant owes: 20.00")

	draft := FromPreview(&regularization.Preview{
		LeaseID: 12, Year: 2024,
		TotalRecoverableExpensesCents: 8000, TotalProvisionsReceivedCents: 18000, BalanceCents: -10000,
	})
	require.Empty(t, draft.Reference)
	require.Contains(t, draft.Summary(), "Refund due to tenant: 100.00")

	byCat := byCategory(st.Lines)
	require.Equal(t, int64(12000), byCat[models.CategoryColdWater])
	require.Len(t, byCat, 2)
}
