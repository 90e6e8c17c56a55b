package receivables_test

import (
	"context"
	"testing"
	"time"

	"github.com/camerata/receivables-engine/receivables"
	"github.com/camerata/receivables-engine/receivables/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func yearlyField(id string, startYear int, baseline receivables.Amount) receivables.FieldDescriptor {
	return receivables.FieldDescriptor{
		ID:           receivables.FieldID(id),
		ProjectID:    "proj",
		Name:         "Membership fee",
		Kind:         receivables.KindReceivable,
		Multiplicity: receivables.MultiplicityRecurring,
		Generator:    receivables.TagPeriodic,
		Schedule: receivables.Schedule{
			Frequency:   receivables.FreqYearly,
			Start:       receivables.NewTimePoint(startYear, time.January, 1),
			LabelFormat: "Fee %s",
		},
		Baseline: baseline,
	}
}

func fixedClock(y int, m time.Month, d int) func() receivables.TimePoint {
	return func() receivables.TimePoint { return receivables.NewTimePoint(y, m, d) }
}

// =============================================================================
// SCHEDULE MATERIALIZATION
// =============================================================================

func TestMaterializeSchedule_CreatesOneInstancePerElapsedPeriod(t *testing.T) {
	// GIVEN: A yearly schedule starting 2022, today is mid-2024
	// WHEN: Materializing
	// THEN: Instances exist for 2022, 2023 and 2024, labeled per the format

	mem := store.NewMemory()
	field := yearlyField("fee", 2022, eur(25))
	gen := &receivables.PeriodicGenerator{Clock: fixedClock(2024, time.June, 15)}

	result, err := gen.GenerateReceivables(context.Background(), mem, field)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Created) != 3 || len(result.Instances) != 3 {
		t.Fatalf("expected 3 instances, got created=%d instances=%d", len(result.Created), len(result.Instances))
	}

	wantLabels := []string{"Fee 2022", "Fee 2023", "Fee 2024"}
	for i, want := range wantLabels {
		if result.Instances[i].Label != want {
			t.Errorf("instance %d: label %q, want %q", i, result.Instances[i].Label, want)
		}
	}

	// Period of the first instance covers calendar 2022.
	p := result.Instances[0].Period
	if p.Start.String() != "2022-01-01" || p.End.String() != "2022-12-31" {
		t.Errorf("unexpected first period %s", p)
	}
}

func TestMaterializeSchedule_Rerun_CreatesNothingAndKeepsKeys(t *testing.T) {
	// GIVEN: A field already materialized through 2024
	// WHEN: Materializing again with the same clock
	// THEN: Nothing new; existing option keys are untouched

	mem := store.NewMemory()
	field := yearlyField("fee", 2023, eur(25))
	gen := &receivables.PeriodicGenerator{Clock: fixedClock(2024, time.June, 15)}
	ctx := context.Background()

	first, err := gen.GenerateReceivables(ctx, mem, field)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, err := gen.GenerateReceivables(ctx, mem, field)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(second.Created) != 0 {
		t.Errorf("rerun created %d instances, want 0", len(second.Created))
	}
	if len(second.Instances) != len(first.Instances) {
		t.Fatalf("instance count changed across reruns: %d vs %d", len(second.Instances), len(first.Instances))
	}
	for i := range first.Instances {
		if second.Instances[i].Key != first.Instances[i].Key {
			t.Errorf("option key regenerated for %q", first.Instances[i].Label)
		}
		if second.Instances[i].ID != first.Instances[i].ID {
			t.Errorf("instance ID regenerated for %q", first.Instances[i].Label)
		}
	}
}

func TestMaterializeSchedule_AdvancingClock_AddsOnlyNewPeriods(t *testing.T) {
	// GIVEN: A field materialized through 2023
	// WHEN: Time advances to 2025 and the field is materialized again
	// THEN: Exactly the 2024 and 2025 instances are created

	mem := store.NewMemory()
	field := yearlyField("fee", 2023, eur(25))
	ctx := context.Background()

	early := &receivables.PeriodicGenerator{Clock: fixedClock(2023, time.December, 31)}
	if _, err := early.GenerateReceivables(ctx, mem, field); err != nil {
		t.Fatalf("first run: %v", err)
	}

	late := &receivables.PeriodicGenerator{Clock: fixedClock(2025, time.February, 1)}
	result, err := late.GenerateReceivables(ctx, mem, field)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(result.Created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(result.Created))
	}
	if result.Created[0].Label != "Fee 2024" || result.Created[1].Label != "Fee 2025" {
		t.Errorf("unexpected created labels: %q, %q", result.Created[0].Label, result.Created[1].Label)
	}
}

func TestMaterializeSchedule_StartInFuture_NoInstances(t *testing.T) {
	mem := store.NewMemory()
	field := yearlyField("fee", 2030, eur(25))
	gen := &receivables.PeriodicGenerator{Clock: fixedClock(2024, time.June, 15)}

	result, err := gen.GenerateReceivables(context.Background(), mem, field)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Instances) != 0 {
		t.Errorf("expected no instances before the schedule start, got %d", len(result.Instances))
	}
}

func TestMaterializeSchedule_Quarterly_MonthStampLabels(t *testing.T) {
	// GIVEN: A quarterly schedule starting January 2024
	// WHEN: Materializing in August 2024
	// THEN: Q1-Q3 instances exist, labeled with month stamps

	mem := store.NewMemory()
	field := yearlyField("fee", 2024, eur(10))
	field.Schedule.Frequency = receivables.FreqQuarterly
	field.Schedule.LabelFormat = "Quarter %s"
	gen := &receivables.PeriodicGenerator{Clock: fixedClock(2024, time.August, 1)}

	result, err := gen.GenerateReceivables(context.Background(), mem, field)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantLabels := []string{"Quarter 2024-01", "Quarter 2024-04", "Quarter 2024-07"}
	if len(result.Instances) != len(wantLabels) {
		t.Fatalf("expected %d instances, got %d", len(wantLabels), len(result.Instances))
	}
	for i, want := range wantLabels {
		if result.Instances[i].Label != want {
			t.Errorf("instance %d: label %q, want %q", i, result.Instances[i].Label, want)
		}
	}
}

// =============================================================================
// PERIODIC VALUE COMPUTATION
// =============================================================================

func TestPeriodicComputeValue_MemberDuringPeriod_OwesBaseline(t *testing.T) {
	gen := &receivables.PeriodicGenerator{}
	inst := instance("i-2024", "Fee 2024", 2024)
	inst.Baseline = eur(25)

	value, err := gen.ComputeValue(context.Background(), member("p-1", "Alice", 2020), inst, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value == nil || !value.Amount.Equal(eur(25)) {
		t.Errorf("expected baseline 25 EUR, got %+v", value)
	}
}

func TestPeriodicComputeValue_LeftBeforePeriod_NotApplicable(t *testing.T) {
	gen := &receivables.PeriodicGenerator{}
	inst := instance("i-2024", "Fee 2024", 2024)
	inst.Baseline = eur(25)

	p := member("p-1", "Alice", 2020)
	left := receivables.NewTimePoint(2023, time.June, 30)
	p.LeftAt = &left

	value, err := gen.ComputeValue(context.Background(), p, inst, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Errorf("expected nil for a departed member, got %+v", value)
	}
}

func TestPeriodicComputeValue_JoinedMidPeriod_StillOwes(t *testing.T) {
	// Membership only has to overlap the period, not span it.
	gen := &receivables.PeriodicGenerator{}
	inst := instance("i-2024", "Fee 2024", 2024)
	inst.Baseline = eur(25)

	p := member("p-1", "Alice", 2024)
	p.JoinedAt = receivables.NewTimePoint(2024, time.September, 1)

	value, err := gen.ComputeValue(context.Background(), p, inst, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value == nil {
		t.Error("expected mid-period joiner to owe the baseline")
	}
}

// =============================================================================
// MANUAL AND NO-OP STRATEGIES
// =============================================================================

func TestManualGenerator_NeverCreatesInstances(t *testing.T) {
	mem := store.NewMemory()
	field := yearlyField("fee", 2020, eur(25))
	field.Multiplicity = receivables.MultiplicityManual
	field.Generator = receivables.TagManual

	gen := &receivables.ManualGenerator{}
	result, err := gen.GenerateReceivables(context.Background(), mem, field)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Created) != 0 || len(result.Instances) != 0 {
		t.Errorf("manual generator must not materialize, got %+v", result)
	}
}

func TestManualGenerator_HoldsExistingValueSteady(t *testing.T) {
	// GIVEN: A stored hand-entered datum
	// WHEN: Computing the value
	// THEN: The computed value mirrors the stored one, so a recompute is a no-op

	gen := &receivables.ManualGenerator{}
	inst := instance("i-1", "Special levy", 2024)
	prior := &receivables.ParticipantDatum{
		ParticipantID: "p-1", InstanceID: inst.ID,
		Amount: eur(42), DocumentRef: "levy/p-1.pdf",
	}

	value, err := gen.ComputeValue(context.Background(), member("p-1", "Alice", 2020), inst, prior)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value == nil || !value.Amount.Equal(eur(42)) || value.DocumentRef != "levy/p-1.pdf" {
		t.Errorf("manual compute must mirror the prior datum, got %+v", value)
	}

	// No prior datum means nothing to propose.
	value, err = gen.ComputeValue(context.Background(), member("p-2", "Bob", 2020), inst, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Errorf("manual compute must propose nothing without a prior datum, got %+v", value)
	}
}

func TestNoOpGenerator_PreservesEverything(t *testing.T) {
	gen := &receivables.NoOpGenerator{}
	inst := instance("i-1", "Frozen fee", 2024)
	prior := &receivables.ParticipantDatum{
		ParticipantID: "p-1", InstanceID: inst.ID, Amount: eur(10),
	}

	value, err := gen.ComputeValue(context.Background(), member("p-1", "Alice", 2020), inst, prior)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value == nil || !value.Amount.Equal(eur(10)) {
		t.Errorf("noop compute must mirror the prior datum, got %+v", value)
	}
}

// =============================================================================
// INSTANCE ORDERING
// =============================================================================

func TestSortInstances_PeriodStartThenLabel(t *testing.T) {
	instances := []receivables.ReceivableInstance{
		instance("i-c", "B fee", 2024),
		instance("i-a", "A fee", 2024),
		instance("i-b", "Z fee", 2023),
	}

	receivables.SortInstances(instances)

	wantIDs := []receivables.InstanceID{"i-b", "i-a", "i-c"}
	for i, want := range wantIDs {
		if instances[i].ID != want {
			t.Fatalf("order: got %v at %d, want %v", instances[i].ID, i, want)
		}
	}
}
