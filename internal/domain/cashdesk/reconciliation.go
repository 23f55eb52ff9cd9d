package cashdesk

import "github.com/shopspring/decimal"

// Default reconciliation thresholds, in currency units
var (
	DefaultMaterialityThreshold = decimal.NewFromInt(5)
	DefaultSevereThreshold      = decimal.NewFromInt(50)
)

// ReconciliationPolicy decides when a close-time discrepancy becomes an incident
type ReconciliationPolicy struct {
	// MaterialityThreshold: |discrepancy| above it raises an incident
	MaterialityThreshold decimal.Decimal
	// SevereThreshold: |discrepancy| above it is classified as a shortfall
	SevereThreshold decimal.Decimal
}

// DefaultReconciliationPolicy returns the 5 / 50 policy
func DefaultReconciliationPolicy() ReconciliationPolicy {
	return ReconciliationPolicy{
		MaterialityThreshold: DefaultMaterialityThreshold,
		SevereThreshold:      DefaultSevereThreshold,
	}
}

// NewReconciliationPolicy builds a policy, falling back to the defaults for non-positive values
func NewReconciliationPolicy(materiality, severe decimal.Decimal) ReconciliationPolicy {
	p := DefaultReconciliationPolicy()
	if materiality.IsPositive() {
		p.MaterialityThreshold = materiality
	}
	if severe.IsPositive() {
		p.SevereThreshold = severe
	}
	return p
}

// ComputeTheoretical returns opening + income - expense
func ComputeTheoretical(opening, income, expense decimal.Decimal) decimal.Decimal {
	return opening.Add(income).Sub(expense)
}

// ComputeDiscrepancy returns declared - theoretical. Positive is a surplus, negative a shortfall.
func ComputeDiscrepancy(declared, theoretical decimal.Decimal) decimal.Decimal {
	return declared.Sub(theoretical)
}

// Classify returns the incident kind a discrepancy raises, and false when it is immaterial
func (p ReconciliationPolicy) Classify(discrepancy decimal.Decimal) (IncidentKind, bool) {
	abs := discrepancy.Abs()
	if !abs.GreaterThan(p.MaterialityThreshold) {
		return "", false
	}
	if abs.GreaterThan(p.SevereThreshold) {
		return IncidentKindShortfall, true
	}
	return IncidentKindDifference, true
}
