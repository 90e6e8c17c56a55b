package insurance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camerata/receivables-engine/insurance"
	"github.com/camerata/receivables-engine/receivables"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestGenerator(t *testing.T) (*insurance.Generator, *insurance.MemoryRateTable, *insurance.MemoryRegistry) {
	t.Helper()
	rates := insurance.NewMemoryRateTable()
	rates.SetRate(insurance.ScopeInstrument, decimal.RequireFromString("0.005"))
	rates.SetRate(insurance.ScopeAccessory, decimal.RequireFromString("0.01"))

	objects := insurance.NewMemoryRegistry()
	gen := &insurance.Generator{Rates: rates, Objects: objects}
	return gen, rates, objects
}

func eur(value float64) receivables.Amount {
	return receivables.NewAmount(value, receivables.CurrencyEUR)
}

func year2024Instance() receivables.ReceivableInstance {
	return receivables.ReceivableInstance{
		ID:      "i-2024",
		FieldID: "insurance",
		Key:     "key-2024",
		Label:   "Insurance 2024",
		Period: receivables.Period{
			Start: receivables.NewTimePoint(2024, time.January, 1),
			End:   receivables.NewTimePoint(2024, time.December, 31),
		},
	}
}

func violaPlayer() receivables.Participant {
	return receivables.Participant{
		ID:          "p-viola",
		ProjectID:   "proj",
		DisplayName: "Viola Player",
		JoinedAt:    receivables.NewTimePoint(2020, time.January, 1),
	}
}

func insuredObject(id string, participant receivables.ParticipantID, scope insurance.Scope, value float64, fromYear int) insurance.InsuredObject {
	return insurance.InsuredObject{
		ID:            id,
		ParticipantID: participant,
		Label:         id,
		Scope:         scope,
		InsuredValue:  eur(value),
		From:          receivables.NewTimePoint(fromYear, time.January, 1),
	}
}

// =============================================================================
// PREMIUM COMPUTATION
// =============================================================================

func TestComputeValue_SingleInstrument_ValueTimesRate(t *testing.T) {
	// GIVEN: A viola insured for 2000 EUR at a 0.5% instrument rate
	// WHEN: Computing the 2024 premium
	// THEN: The participant owes 10.00 EUR

	gen, _, objects := newTestGenerator(t)
	objects.Add(insuredObject("viola", "p-viola", insurance.ScopeInstrument, 2000, 2021))

	value, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.NoError(t, err)
	require.NotNil(t, value)

	assert.True(t, value.Amount.Equal(eur(10)), "expected 10.00 EUR, got %s", value.Amount)
}

func TestComputeValue_MultipleObjects_PremiumsSummed(t *testing.T) {
	// GIVEN: A 2000 EUR viola (0.5%) and a 300 EUR bow case (1%)
	// WHEN: Computing the 2024 premium
	// THEN: 10.00 + 3.00 = 13.00 EUR

	gen, _, objects := newTestGenerator(t)
	objects.Add(insuredObject("viola", "p-viola", insurance.ScopeInstrument, 2000, 2021))
	objects.Add(insuredObject("bow-case", "p-viola", insurance.ScopeAccessory, 300, 2021))

	value, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.NoError(t, err)
	require.NotNil(t, value)

	assert.True(t, value.Amount.Equal(eur(13)), "expected 13.00 EUR, got %s", value.Amount)
}

func TestComputeValue_RoundedToCents(t *testing.T) {
	// 1234.56 * 0.005 = 6.1728 -> 6.17
	gen, _, objects := newTestGenerator(t)
	objects.Add(insuredObject("cello", "p-viola", insurance.ScopeInstrument, 1234.56, 2021))

	value, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.NoError(t, err)
	require.NotNil(t, value)

	assert.Equal(t, "6.17 EUR", value.Amount.String())
}

func TestComputeValue_NoCoveredObjects_NotApplicable(t *testing.T) {
	// GIVEN: A participant with no insured objects at all
	// WHEN: Computing the premium
	// THEN: nil - the receivable does not apply to them

	gen, _, _ := newTestGenerator(t)

	value, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.NoError(t, err)
	assert.Nil(t, value, "no insured objects means no receivable")
}

func TestComputeValue_CoverageOutsidePeriod_Excluded(t *testing.T) {
	// GIVEN: One object whose coverage ended in 2023 and one starting in 2025
	// WHEN: Computing the 2024 premium
	// THEN: Neither contributes; the receivable does not apply

	gen, _, objects := newTestGenerator(t)

	expired := insuredObject("old-viola", "p-viola", insurance.ScopeInstrument, 2000, 2020)
	until := receivables.NewTimePoint(2023, time.June, 30)
	expired.Until = &until
	objects.Add(expired)

	objects.Add(insuredObject("future-viola", "p-viola", insurance.ScopeInstrument, 3000, 2025))

	value, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestComputeValue_CoverageEndingMidPeriod_StillCharged(t *testing.T) {
	// Coverage only has to overlap the billing period.
	gen, _, objects := newTestGenerator(t)

	obj := insuredObject("viola", "p-viola", insurance.ScopeInstrument, 2000, 2020)
	until := receivables.NewTimePoint(2024, time.March, 31)
	obj.Until = &until
	objects.Add(obj)

	value, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.True(t, value.Amount.Equal(eur(10)))
}

func TestComputeValue_MissingRate_Error(t *testing.T) {
	rates := insurance.NewMemoryRateTable() // no rates configured
	objects := insurance.NewMemoryRegistry()
	objects.Add(insuredObject("viola", "p-viola", insurance.ScopeInstrument, 2000, 2021))

	gen := &insurance.Generator{Rates: rates, Objects: objects}

	_, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, insurance.ErrUnknownScope)
}

func TestComputeValue_DocumentRef_NamesYearAndParticipant(t *testing.T) {
	gen, _, objects := newTestGenerator(t)
	objects.Add(insuredObject("viola", "p-viola", insurance.ScopeInstrument, 2000, 2021))

	value, err := gen.ComputeValue(context.Background(), violaPlayer(), year2024Instance(), nil)
	require.NoError(t, err)
	require.NotNil(t, value)

	assert.Equal(t, "insurance/2024/p-viola.pdf", value.DocumentRef)
}

// =============================================================================
// COVERAGE WINDOW
// =============================================================================

func TestCoveredDuring_OpenEnded(t *testing.T) {
	obj := insuredObject("viola", "p-viola", insurance.ScopeInstrument, 2000, 2021)
	period := year2024Instance().Period

	assert.True(t, obj.CoveredDuring(period))
}

func TestCoveredDuring_BeforeCoverageStarts(t *testing.T) {
	obj := insuredObject("viola", "p-viola", insurance.ScopeInstrument, 2000, 2025)
	period := year2024Instance().Period

	assert.False(t, obj.CoveredDuring(period))
}

// =============================================================================
// REGISTRY WIRING
// =============================================================================

func TestRegister_BindsRateDerivedTag(t *testing.T) {
	// GIVEN: The default registry plus the insurance registration
	// WHEN: Resolving a rate-derived recurring field
	// THEN: The insurance generator is returned

	rates := insurance.NewMemoryRateTable()
	objects := insurance.NewMemoryRegistry()

	registry := receivables.DefaultRegistry()
	insurance.Register(registry, rates, objects)

	f := receivables.NewFactory(registry)
	strategy, err := f.ForField(receivables.FieldDescriptor{
		ID:           "insurance",
		ProjectID:    "proj",
		Kind:         receivables.KindReceivable,
		Multiplicity: receivables.MultiplicityRecurring,
		Generator:    receivables.TagRateDerived,
	})
	require.NoError(t, err)

	_, ok := strategy.(*insurance.Generator)
	assert.True(t, ok, "expected *insurance.Generator, got %T", strategy)
}
