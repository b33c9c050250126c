package pricing

import (
	"fmt"
	"math"

	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

// Consultation pricing rules.
const (
	emergencySurchargeRate = 0.50
	eveningSurcharge       = 20.00
	overrunBaselineMinutes = 30
	overrunQuantumMinutes  = 15
	overrunQuantumFee      = 25.00
	followUpDiscountRate   = 0.20
	consultationFloorRate  = 0.50
)

// Labels used in fee maps and breakdown lines.
const (
	LabelEmergency    = "Emergency surcharge"
	LabelEvening      = "Evening hours surcharge"
	LabelOverrun      = "Extended consultation"
	LabelFollowUp     = "Follow-up visit discount"
	LabelMinimumClamp = "Minimum charge adjustment"
)

// consultationDiscountTags enumerates the recognized percentage
// discounts off the base fee.
var consultationDiscountTags = map[string]struct {
	label string
	rate  float64
}{
	"senior":    {"Senior discount", 0.15},
	"shelter":   {"Shelter partner discount", 0.10},
	"multi-pet": {"Multi-pet household discount", 0.15},
}

// ConsultationStrategy prices routine visits. The total never falls
// below half the base fee.
type ConsultationStrategy struct{}

func (ConsultationStrategy) Quote(baseFee float64, f Factors) (Quote, error) {
	if err := validateBase(baseFee); err != nil {
		return Quote{}, err
	}

	q := Quote{
		BaseCost:       round2(baseFee),
		AdditionalFees: map[string]float64{},
		Discounts:      map[string]float64{},
	}
	q.Breakdown = append(q.Breakdown, fmt.Sprintf("Base consultation fee: %.2f", q.BaseCost))
	total := q.BaseCost

	if f.Emergency {
		fee := round2(baseFee * emergencySurchargeRate)
		q.AdditionalFees[LabelEmergency] = fee
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s (+%d%% of base): %.2f", LabelEmergency, int(emergencySurchargeRate*100), fee))
		total += fee
	}

	if f.TimeOfDay == TimeOfDayEvening {
		q.AdditionalFees[LabelEvening] = eveningSurcharge
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s: %.2f", LabelEvening, eveningSurcharge))
		total += eveningSurcharge
	}

	// OverrunMinutes counts consultation time beyond the 30-minute
	// baseline, charged per started 15-minute quantum.
	if f.OverrunMinutes > 0 {
		quanta := int(math.Ceil(float64(f.OverrunMinutes) / overrunQuantumMinutes))
		fee := round2(float64(quanta) * overrunQuantumFee)
		label := fmt.Sprintf("%s (%d x %d min)", LabelOverrun, quanta, overrunQuantumMinutes)
		q.AdditionalFees[label] = fee
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s: %.2f", label, fee))
		total += fee
	}

	if f.FollowUp {
		discount := round2(baseFee * followUpDiscountRate)
		q.Discounts[LabelFollowUp] = discount
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s (-%d%% of base): -%.2f", LabelFollowUp, int(followUpDiscountRate*100), discount))
		total -= discount
	}

	seen := map[string]bool{}
	for _, tag := range f.DiscountTags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		def, ok := consultationDiscountTags[tag]
		if !ok {
			return Quote{}, apperrors.NewValidationError(fmt.Sprintf("unknown discount tag %q", tag))
		}
		discount := round2(baseFee * def.rate)
		q.Discounts[def.label] = discount
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s (-%d%% of base): -%.2f", def.label, int(def.rate*100), discount))
		total -= discount
	}

	floor := round2(baseFee * consultationFloorRate)
	if total < floor {
		adjustment := round2(floor - total)
		q.Breakdown = append(q.Breakdown, fmt.Sprintf("%s (floor at %.2f): +%.2f", LabelMinimumClamp, floor, adjustment))
		total = floor
	}

	q.TotalCost = round2(total)
	q.Breakdown = append(q.Breakdown, fmt.Sprintf("Total: %.2f", q.TotalCost))
	return q, nil
}
