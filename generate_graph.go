//go:build ignore
// +build ignore

package main

import (
	"fmt"
	"os"

	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/report"
)

func main() {
	st := report.Statement{
		LeaseID: 1,
		Year:    2025,
		Lines: []models.RegularizationLine{
			{ExpenseID: 1, Category: models.CategoryColdWater, Label: "Water", AmountRecoverable: 42000},
			{ExpenseID: 2, Category: models.CategoryElevator, Label: "Lift maintenance", AmountRecoverable: 31000},
			{ExpenseID: 3, Category: models.CategoryCleaningCommon, Label: "Stairs cleaning", AmountRecoverable: 18000},
			{ExpenseID: 4, Category: models.CategoryWasteTax, Label: "Waste tax", AmountRecoverable: 21500},
		},
	}

	chartData, err := report.RegularizationChart(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(st.ChartFilename(), chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", st.ChartFilename())
}
