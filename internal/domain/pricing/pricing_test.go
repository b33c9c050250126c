package pricing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetdesk/appointment-engine/internal/domain/entities"
	"github.com/vetdesk/appointment-engine/internal/domain/pricing"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

func TestConsultationStrategy_Quote(t *testing.T) {
	s := pricing.ConsultationStrategy{}

	t.Run("plain visit is just the base fee", func(t *testing.T) {
		q, err := s.Quote(80, pricing.Factors{})
		require.NoError(t, err)
		assert.Equal(t, 80.0, q.BaseCost)
		assert.Equal(t, 80.0, q.TotalCost)
		assert.Empty(t, q.AdditionalFees)
		assert.Empty(t, q.Discounts)
	})

	t.Run("emergency adds half the base fee", func(t *testing.T) {
		q, err := s.Quote(80, pricing.Factors{Emergency: true})
		require.NoError(t, err)
		assert.Equal(t, 120.0, q.TotalCost)
		assert.Equal(t, 40.0, q.AdditionalFees[pricing.LabelEmergency])

		found := false
		for _, line := range q.Breakdown {
			if strings.Contains(line, pricing.LabelEmergency) {
				found = true
			}
		}
		assert.True(t, found, "breakdown should contain an emergency surcharge line")
	})

	t.Run("evening visit adds flat surcharge", func(t *testing.T) {
		q, err := s.Quote(100, pricing.Factors{TimeOfDay: pricing.TimeOfDayEvening})
		require.NoError(t, err)
		assert.Equal(t, 120.0, q.TotalCost)
	})

	t.Run("overrun rounds up to the next quantum", func(t *testing.T) {
		// 16 minutes over -> two 15-minute quanta
		q, err := s.Quote(100, pricing.Factors{OverrunMinutes: 16})
		require.NoError(t, err)
		assert.Equal(t, 150.0, q.TotalCost)

		// exactly one quantum
		q, err = s.Quote(100, pricing.Factors{OverrunMinutes: 15})
		require.NoError(t, err)
		assert.Equal(t, 125.0, q.TotalCost)

		// no overrun, no fee
		q, err = s.Quote(100, pricing.Factors{OverrunMinutes: 0})
		require.NoError(t, err)
		assert.Equal(t, 100.0, q.TotalCost)
	})

	t.Run("follow-up and senior discounts stack", func(t *testing.T) {
		q, err := s.Quote(100, pricing.Factors{
			FollowUp:     true,
			DiscountTags: []string{"senior"},
		})
		require.NoError(t, err)
		// 100 - 20 (follow-up) - 15 (senior) = 65
		assert.Equal(t, 65.0, q.TotalCost)
		assert.Equal(t, 20.0, q.Discounts[pricing.LabelFollowUp])
		assert.Equal(t, 15.0, q.Discounts["Senior discount"])
	})

	t.Run("stacked discounts above the floor pass through", func(t *testing.T) {
		q, err := s.Quote(100, pricing.Factors{
			FollowUp:     true,
			DiscountTags: []string{"senior", "shelter"},
		})
		require.NoError(t, err)
		// 100 - 20 - 15 - 10 = 55, still above the 50.00 floor
		assert.Equal(t, 55.0, q.TotalCost)
	})

	t.Run("total is clamped to half the base fee", func(t *testing.T) {
		q, err := s.Quote(100, pricing.Factors{
			FollowUp:     true,
			DiscountTags: []string{"senior", "shelter", "multi-pet"},
		})
		require.NoError(t, err)
		// 100 - 20 - 15 - 10 - 15 = 40, clamped up to the 50.00 floor
		assert.Equal(t, 50.0, q.TotalCost)
		assert.Contains(t, q.Breakdown, pricing.LabelMinimumClamp+" (floor at 50.00): +10.00")
	})

	t.Run("rejects non-positive base fee", func(t *testing.T) {
		_, err := s.Quote(0, pricing.Factors{})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("rejects unknown discount tag", func(t *testing.T) {
		_, err := s.Quote(80, pricing.Factors{DiscountTags: []string{"mystery"}})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestProcedureStrategy_Quote(t *testing.T) {
	s := pricing.ProcedureStrategy{}

	t.Run("minor complexity leaves base unchanged", func(t *testing.T) {
		q, err := s.Quote(500, pricing.Factors{Complexity: pricing.ComplexityMinor})
		require.NoError(t, err)
		assert.Equal(t, 500.0, q.TotalCost)
	})

	t.Run("critical complexity multiplies by 2.5", func(t *testing.T) {
		q, err := s.Quote(500, pricing.Factors{Complexity: pricing.ComplexityCritical})
		require.NoError(t, err)
		assert.Equal(t, 1250.0, q.TotalCost)
	})

	t.Run("ancillary services add flat fees", func(t *testing.T) {
		q, err := s.Quote(500, pricing.Factors{
			Complexity:        pricing.ComplexityMajor,
			AncillaryServices: []string{"anesthesia", "lab-panel"},
		})
		require.NoError(t, err)
		// 500 * 1.5 + 120 + 45 = 915
		assert.Equal(t, 915.0, q.TotalCost)
	})

	t.Run("insurance applies after additive fees and clamps at zero", func(t *testing.T) {
		q, err := s.Quote(500, pricing.Factors{
			Complexity:           pricing.ComplexityMajor,
			AncillaryServices:    []string{"imaging"},
			InsuranceCoveragePct: 50,
		})
		require.NoError(t, err)
		// (500*1.5 + 80) * 0.5 = 415
		assert.Equal(t, 415.0, q.TotalCost)

		q, err = s.Quote(500, pricing.Factors{InsuranceCoveragePct: 100})
		require.NoError(t, err)
		assert.Equal(t, 0.0, q.TotalCost)

		// Coverage above 100% never produces a negative bill.
		q, err = s.Quote(500, pricing.Factors{InsuranceCoveragePct: 120})
		require.NoError(t, err)
		assert.Equal(t, 0.0, q.TotalCost)
	})

	t.Run("rejects unknown ancillary service", func(t *testing.T) {
		_, err := s.Quote(500, pricing.Factors{AncillaryServices: []string{"grooming"}})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestQuote_Determinism(t *testing.T) {
	s := pricing.ConsultationStrategy{}
	factors := pricing.Factors{
		TimeOfDay:      pricing.TimeOfDayEvening,
		Emergency:      true,
		OverrunMinutes: 20,
		DiscountTags:   []string{"senior"},
	}

	first, err := s.Quote(87.35, factors)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		next, err := s.Quote(87.35, factors)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestFactory_ForCategory(t *testing.T) {
	f := pricing.NewFactory()

	s, err := f.ForCategory(entities.CategoryConsultation)
	require.NoError(t, err)
	assert.IsType(t, pricing.ConsultationStrategy{}, s)

	s, err = f.ForCategory(entities.CategoryProcedure)
	require.NoError(t, err)
	assert.IsType(t, pricing.ProcedureStrategy{}, s)

	// Empty category defaults to consultation.
	s, err = f.ForCategory("")
	require.NoError(t, err)
	assert.IsType(t, pricing.ConsultationStrategy{}, s)

	_, err = f.ForCategory("grooming")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
