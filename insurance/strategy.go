/*
strategy.go - The rate-derived generator strategy

The premium for a participant and billing period is:

  sum over insured objects covered during the period of
    insured value x annual rate for the object's scope

rounded to two decimal places. Participants with no covered object owe
nothing - the receivable does not apply to them at all.

Instances follow the field's periodic schedule, so "Insurance 2024" exists as
soon as the schedule reaches 2024 and keeps its option key forever after.
*/
package insurance

import (
	"context"
	"fmt"

	"github.com/camerata/receivables-engine/receivables"
)

// Generator is the rate-derived strategy. It is pure in the participant,
// instance and reference tables; the prior datum is ignored.
type Generator struct {
	Rates   RateTable
	Objects ObjectRegistry

	// Clock returns "now" for schedule evaluation. Defaults to Today.
	Clock func() receivables.TimePoint
}

func (g *Generator) now() receivables.TimePoint {
	if g.Clock != nil {
		return g.Clock()
	}
	return receivables.Today()
}

func (g *Generator) GenerateReceivables(ctx context.Context, s receivables.Store, field receivables.FieldDescriptor) (receivables.GenerationResult, error) {
	return receivables.MaterializeSchedule(ctx, s, field, g.now())
}

func (g *Generator) ComputeValue(ctx context.Context, participant receivables.Participant, instance receivables.ReceivableInstance, _ *receivables.ParticipantDatum) (*receivables.ComputedValue, error) {
	objects, err := g.Objects.ObjectsFor(ctx, participant.ID)
	if err != nil {
		return nil, fmt.Errorf("load insured objects for %s: %w", participant.ID, err)
	}

	var total receivables.Amount
	covered := 0
	for _, obj := range objects {
		if !obj.CoveredDuring(instance.Period) {
			continue
		}
		rate, err := g.Rates.RateFor(ctx, obj.Scope)
		if err != nil {
			return nil, fmt.Errorf("rate for object %q: %w", obj.Label, err)
		}
		premium := obj.InsuredValue.Mul(rate)
		if covered == 0 {
			total = premium
		} else {
			total = total.Add(premium)
		}
		covered++
	}
	if covered == 0 {
		return nil, nil
	}

	return &receivables.ComputedValue{
		Amount:      total.Round(2),
		DocumentRef: documentRef(instance, participant),
	}, nil
}

// documentRef names the supporting premium breakdown for one participant and
// billing period, rendered elsewhere.
func documentRef(instance receivables.ReceivableInstance, participant receivables.Participant) string {
	return fmt.Sprintf("insurance/%d/%s.pdf", instance.Period.Start.Year(), participant.ID)
}

// Register wires the rate-derived strategy into a registry. Call once at
// startup, after constructing the reference-data providers.
func Register(registry *receivables.Registry, rates RateTable, objects ObjectRegistry) {
	registry.Register(receivables.TagRateDerived, func(receivables.FieldDescriptor) (receivables.GeneratorStrategy, error) {
		return &Generator{Rates: rates, Objects: objects}, nil
	})
}
