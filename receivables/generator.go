/*
generator.go - Generator strategies for receivable instances and values

PURPOSE:
  A generator strategy does two things for a field:
  1. Materialize the instances its schedule mandates (generateReceivables)
  2. Compute the should-be value for one participant/instance pair (computeValue)

STRATEGIES:
  PeriodicGenerator: time-sliced instances, baseline amount per member
  ManualGenerator:   instances curated out-of-band, values held steady
  NoOpGenerator:     touches nothing, preserves whatever exists
  (rate-derived lives in the insurance package; it reuses the periodic
  schedule via MaterializeSchedule)

IDEMPOTENCE:
  generateReceivables deduplicates on the period start date. Running it twice
  without a schedule change creates nothing the second time, and existing
  instances keep their option keys.

PURITY:
  computeValue never persists. It is a function of participant attributes,
  instance parameters and reference data at call time. The prior datum is
  passed in so the manual/no-op variants can hold existing values steady
  without store access; periodic ignores it.

SEE ALSO:
  - factory.go: Tag-to-strategy registry
  - engine.go: The reconciliation pass driving computeValue
*/
package receivables

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// =============================================================================
// STRATEGY CONTRACT
// =============================================================================

// GenerationResult is the outcome of one materialization pass.
type GenerationResult struct {
	// Instances is the complete, current set for the field, ordered by period
	// start then label.
	Instances []ReceivableInstance

	// Created is the subset materialized by this call (empty on reruns).
	Created []ReceivableInstance
}

// GeneratorStrategy is the pluggable algorithm behind a field descriptor.
type GeneratorStrategy interface {
	// GenerateReceivables returns the complete current instance set, creating
	// any schedule-mandated instances that do not yet exist. Existing
	// instances are left untouched. Idempotent.
	GenerateReceivables(ctx context.Context, s Store, field FieldDescriptor) (GenerationResult, error)

	// ComputeValue returns what the participant should owe for the instance,
	// or nil when the receivable does not apply to them. No side effects.
	ComputeValue(ctx context.Context, participant Participant, instance ReceivableInstance, prior *ParticipantDatum) (*ComputedValue, error)
}

// =============================================================================
// SCHEDULE MATERIALIZATION - Shared by periodic and rate-derived
// =============================================================================

// MaterializeSchedule creates every instance the field's schedule mandates up
// to now, matched against existing instances by period start. Option keys of
// existing instances are never regenerated.
func MaterializeSchedule(ctx context.Context, s Store, field FieldDescriptor, now TimePoint) (GenerationResult, error) {
	existing, err := s.ListInstances(ctx, field.ID)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("list instances for field %s: %w", field.ID, err)
	}

	byStart := make(map[string]bool, len(existing))
	for _, inst := range existing {
		byStart[inst.Period.Start.String()] = true
	}

	result := GenerationResult{Instances: existing}
	for _, period := range field.Schedule.PeriodsThrough(now) {
		if byStart[period.Start.String()] {
			continue
		}
		inst := ReceivableInstance{
			ID:       InstanceID(uuid.NewString()),
			FieldID:  field.ID,
			Key:      OptionKey(uuid.NewString()),
			Label:    field.Schedule.Label(period),
			Baseline: field.Baseline,
			Period:   period,
		}
		if err := s.CreateInstance(ctx, inst); err != nil {
			return GenerationResult{}, fmt.Errorf("create instance %q: %w", inst.Label, err)
		}
		result.Instances = append(result.Instances, inst)
		result.Created = append(result.Created, inst)
	}

	SortInstances(result.Instances)
	return result, nil
}

// SortInstances orders instances by period start, then label, then ID. The
// engine relies on this ordering for reproducible statistics and logs.
func SortInstances(instances []ReceivableInstance) {
	sort.Slice(instances, func(i, j int) bool {
		if !instances[i].Period.Start.Equal(instances[j].Period.Start) {
			return instances[i].Period.Start.Before(instances[j].Period.Start)
		}
		if instances[i].Label != instances[j].Label {
			return instances[i].Label < instances[j].Label
		}
		return instances[i].ID < instances[j].ID
	})
}

// existingSet returns the field's current instances without creating anything.
func existingSet(ctx context.Context, s Store, field FieldDescriptor) (GenerationResult, error) {
	existing, err := s.ListInstances(ctx, field.ID)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("list instances for field %s: %w", field.ID, err)
	}
	SortInstances(existing)
	return GenerationResult{Instances: existing}, nil
}

// =============================================================================
// PERIODIC - Time-sliced instances, baseline amount per member
// =============================================================================

// PeriodicGenerator materializes one instance per schedule period and charges
// the instance baseline to every participant whose membership overlaps it.
type PeriodicGenerator struct {
	// Clock returns "now" for schedule evaluation. Defaults to Today.
	Clock func() TimePoint
}

func (g *PeriodicGenerator) now() TimePoint {
	if g.Clock != nil {
		return g.Clock()
	}
	return Today()
}

func (g *PeriodicGenerator) GenerateReceivables(ctx context.Context, s Store, field FieldDescriptor) (GenerationResult, error) {
	return MaterializeSchedule(ctx, s, field, g.now())
}

func (g *PeriodicGenerator) ComputeValue(_ context.Context, participant Participant, instance ReceivableInstance, _ *ParticipantDatum) (*ComputedValue, error) {
	if !participant.MemberDuring(instance.Period) {
		return nil, nil
	}
	return &ComputedValue{Amount: instance.Baseline}, nil
}

// =============================================================================
// MANUAL - Instances curated out-of-band, values held steady
// =============================================================================

// ManualGenerator never creates instances and never contradicts hand-entered
// data: a recompute leaves existing values exactly as they are and proposes
// nothing for pairs without a datum.
type ManualGenerator struct{}

func (g *ManualGenerator) GenerateReceivables(ctx context.Context, s Store, field FieldDescriptor) (GenerationResult, error) {
	return existingSet(ctx, s, field)
}

func (g *ManualGenerator) ComputeValue(_ context.Context, _ Participant, _ ReceivableInstance, prior *ParticipantDatum) (*ComputedValue, error) {
	if prior == nil {
		return nil, nil
	}
	return &ComputedValue{Amount: prior.Amount, DocumentRef: prior.DocumentRef}, nil
}

// =============================================================================
// NO-OP - Touches nothing
// =============================================================================

// NoOpGenerator is for fields that want no engine action at all.
type NoOpGenerator struct{}

func (g *NoOpGenerator) GenerateReceivables(ctx context.Context, s Store, field FieldDescriptor) (GenerationResult, error) {
	return existingSet(ctx, s, field)
}

func (g *NoOpGenerator) ComputeValue(_ context.Context, _ Participant, _ ReceivableInstance, prior *ParticipantDatum) (*ComputedValue, error) {
	if prior == nil {
		return nil, nil
	}
	return &ComputedValue{Amount: prior.Amount, DocumentRef: prior.DocumentRef}, nil
}
