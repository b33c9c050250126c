// Package pricing computes the fee for an appointment at approval time.
// Everything in this package is pure: no I/O, no clocks, and identical
// inputs always produce identical quotes, line order included.
package pricing

import (
	"fmt"
	"math"

	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

// TimeOfDay buckets the appointment time for surcharge purposes.
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
)

// Complexity grades a procedure.
type Complexity string

const (
	ComplexityMinor    Complexity = "minor"
	ComplexityMajor    Complexity = "major"
	ComplexityCritical Complexity = "critical"
)

// Factors carries the contextual inputs to a quote. Fields irrelevant
// to the selected strategy are ignored.
type Factors struct {
	TimeOfDay            TimeOfDay
	Emergency            bool
	FollowUp             bool
	OverrunMinutes       int
	DiscountTags         []string
	Complexity           Complexity
	AncillaryServices    []string
	InsuranceCoveragePct float64
}

// Quote is the deterministic result of a pricing run.
type Quote struct {
	BaseCost       float64
	AdditionalFees map[string]float64
	Discounts      map[string]float64
	TotalCost      float64
	Breakdown      []string
}

// Strategy prices one appointment category.
type Strategy interface {
	Quote(baseFee float64, f Factors) (Quote, error)
}

// round2 rounds to cents so repeated runs are bit-identical.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validateBase(baseFee float64) error {
	if baseFee <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("base fee must be positive, got %.2f", baseFee))
	}
	return nil
}

// Factory resolves the strategy for an appointment category.
type Factory struct {
	strategies map[entities.AppointmentCategory]Strategy
}

// NewFactory builds a factory with the standard strategy set.
func NewFactory() *Factory {
	return &Factory{
		strategies: map[entities.AppointmentCategory]Strategy{
			entities.CategoryConsultation: ConsultationStrategy{},
			entities.CategoryProcedure:    ProcedureStrategy{},
		},
	}
}

// ForCategory returns the strategy for category. An empty category maps
// to the consultation default.
func (f *Factory) ForCategory(category entities.AppointmentCategory) (Strategy, error) {
	if category == "" {
		category = entities.CategoryConsultation
	}
	s, ok := f.strategies[category]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown appointment category %q", category))
	}
	return s, nil
}
