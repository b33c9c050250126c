package pricing

import (
	"fmt"

	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

// Complexity multipliers for procedures.
var complexityMultipliers = map[Complexity]float64{
	ComplexityMinor:    1.0,
	ComplexityMajor:    1.5,
	ComplexityCritical: 2.5,
}

// Flat add-ons for ancillary services performed alongside a procedure.
var ancillaryServiceFees = map[string]struct {
	label string
	fee   float64
}{
	"anesthesia":      {"Anesthesia", 120.00},
	"imaging":         {"Imaging", 80.00},
	"lab-panel":       {"Laboratory panel", 45.00},
	"hospitalization": {"Hospitalization (per day)", 150.00},
}

// Procedure labels.
const (
	LabelComplexity = "Complexity adjustment"
	LabelInsurance  = "Insurance coverage"
)

// ProcedureStrategy prices surgeries and other procedures. Unlike the
// consultation strategy it clamps only at zero: full insurance coverage
// can legitimately bring the bill to nothing.
type ProcedureStrategy struct{}

func (ProcedureStrategy) Quote(baseFee float64, f Factors) (Quote, error) {
	if err := validateBase(baseFee); err != nil {
		return Quote{}, err
	}

	complexity := f.Complexity
	if complexity == "" {
		complexity = ComplexityMinor
	}
	multiplier, ok := complexityMultipliers[complexity]
	if !ok {
		return Quote{}, apperrors.NewValidationError(fmt.Sprintf("unknown procedure complexity %q", complexity))
	}

	q := Quote{
		BaseCost:       round2(baseFee),
		AdditionalFees: map[string]float64{},
		Discounts:      map[string]float64{},
	}
	q.Breakdown = append(q.Breakdown, fmt.Sprintf("Base procedure fee: %.2f", q.BaseCost))
	total := q.BaseCost

	if multiplier > 1.0 {
		fee := round2(baseFee * (multiplier - 1.0))
		label := fmt.Sprintf("%s (%s x%.1f)", LabelComplexity, complexity, multiplier)
		q.AdditionalFees[label] = fee
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s: %.2f", label, fee))
		total += fee
	}

	for _, service := range f.AncillaryServices {
		def, ok := ancillaryServiceFees[service]
		if !ok {
			return Quote{}, apperrors.NewValidationError(fmt.Sprintf("unknown ancillary service %q", service))
		}
		q.AdditionalFees[def.label] = def.fee
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s: %.2f", def.label, def.fee))
		total += def.fee
	}

	// Insurance applies after all additive fees.
	if f.InsuranceCoveragePct > 0 {
		pct := f.InsuranceCoveragePct
		if pct > 100 {
			pct = 100
		}
		discount := round2(total * pct / 100)
		q.Discounts[LabelInsurance] = discount
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s (-%.0f%%): -%.2f", LabelInsurance, pct, discount))
		total -= discount
	}

	if total < 0 {
		total = 0
	}

	q.TotalCost = round2(total)
	q.Breakdown = append(q.Breakdown, fmt.Sprintf("Total: %.2f", q.TotalCost))
	return q, nil
}
