package models

import (
	"fmt"
	"strings"
)

// Category is the closed set of operating expense categories.
type Category string

// Expense categories.
const (
	CategoryColdWater         Category = "COLD_WATER"
	CategoryHotWater          Category = "HOT_WATER"
	CategoryHeatingCommon     Category = "HEATING_COMMON"
	CategoryElectricityCommon Category = "ELECTRICITY_COMMON"
	CategoryElevator          Category = "ELEVATOR"
	CategoryCleaningCommon    Category = "CLEANING_COMMON"
	CategoryGreenSpaces       Category = "GREEN_SPACES"
	CategoryWasteTax          Category = "WASTE_TAX"
	CategoryCondoFees         Category = "CONDO_FEES"
	CategoryTaxProperty       Category = "TAX_PROPERTY"
	CategoryInsurance         Category = "INSURANCE"
	CategoryManagementFees    Category = "MANAGEMENT_FEES"
	CategoryRepairs           Category = "REPAIRS"
	CategoryLoanInterest      Category = "LOAN_INTEREST"
	CategoryOther             Category = "OTHER"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryColdWater,
	CategoryHotWater,
	CategoryHeatingCommon,
	CategoryElectricityCommon,
	CategoryElevator,
	CategoryCleaningCommon,
	CategoryGreenSpaces,
	CategoryWasteTax,
	CategoryCondoFees,
	CategoryTaxProperty,
	CategoryInsurance,
	CategoryManagementFees,
	CategoryRepairs,
	CategoryLoanInterest,
	CategoryOther,
}

// DeductionRule says how the tax-deductible share of an expense is derived.
type DeductionRule string

// Deduction rules.
const (
	RuleFull    DeductionRule = "FULL"
	RulePartial DeductionRule = "PARTIAL"
	RuleNone    DeductionRule = "NONE"
	RuleManual  DeductionRule = "MANUAL"
)

// ParseCategory validates s against the category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
	}
	return c, nil
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := c.rules()
	return ok
}

// Rule returns the deduction rule for c. Unknown categories return "".
func (c Category) Rule() DeductionRule {
	rule, _ := c.rules()
	return rule
}

// DefaultRecoverable reports whether c is normally re-billed to the tenant.
func (c Category) DefaultRecoverable() bool {
	return c.Rule() == RulePartial
}

// rules is the single category table. The switch has no default branch so
// the exhaustive linter flags any category added without a rule.
func (c Category) rules() (DeductionRule, bool) {
	switch c {
	case CategoryColdWater,
		CategoryHotWater,
		CategoryHeatingCommon,
		CategoryElectricityCommon,
		CategoryElevator,
		CategoryCleaningCommon,
		CategoryGreenSpaces,
		CategoryWasteTax,
		CategoryCondoFees:
		return RulePartial, true
	case CategoryTaxProperty,
		CategoryInsurance,
		CategoryManagementFees,
		CategoryRepairs,
		CategoryLoanInterest:
		return RuleFull, true
	case CategoryOther:
		return RuleManual, true
	}
	return "", false
}

// Deductible computes the deductible amount for an expense under rule.
// manual is only consulted for RuleManual and must lie in [0, total].
func Deductible(rule DeductionRule, total, recoverable int64, manual *int64) (int64, error) {
	switch rule {
	case RuleFull:
		return total, nil
	case RulePartial:
		return total - recoverable, nil
	case RuleNone:
		return 0, nil
	case RuleManual:
		if manual == nil {
			return 0, &ValidationError{Field: "amountDeductible", Reason: "required for manual deduction"}
		}
		if *manual < 0 || *manual > total {
			return 0, &ValidationError{Field: "amountDeductible", Reason: "must be between 0 and amountTotal"}
		}
		return *manual, nil
	}
	return 0, fmt.Errorf("unknown deduction rule %q", rule)
}
