/*
coordinator.go - Batch entry point for generation and reconciliation runs

PURPOSE:
  The Coordinator is what CLI and HTTP layers call. It selects scope (project,
  field, optional instance/participant subsets), opens one store transaction
  per mutating run, and reports results.

OPERATIONS:
  Generate:  materialize missing instances for one field
  Recompute: run the reconciliation pass (optionally generating first)
  List:      read-only view of instances x participants with stored amounts

TRANSACTIONALITY:
  Generate and Recompute are all-or-nothing. A persistence failure, a caller
  cancellation or an exception-strategy conflict all roll the run back; no
  partial writes survive. The Coordinator never retries.
*/
package receivables

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// REQUESTS AND REPORTS
// =============================================================================

// GenerationReport lists the instances one Generate run materialized.
type GenerationReport struct {
	Added []ReceivableInstance
}

// RecomputeRequest selects scope and policy for one reconciliation run.
type RecomputeRequest struct {
	ProjectID ProjectID
	FieldID   FieldID

	// InstanceFilter restricts the run to instances with this exact label.
	// Empty means all instances.
	InstanceFilter string

	// ParticipantFilter restricts the run to these participants.
	// Empty means all project participants.
	ParticipantFilter []ParticipantID

	Update UpdateStrategy

	// Generate materializes missing instances before reconciling.
	Generate bool
}

// ListEntry is one row of the read-only receivables view.
type ListEntry struct {
	Instance    ReceivableInstance
	Participant Participant
	Amount      Amount
	DocumentRef string
	Overridden  bool
}

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	store   TxStore
	factory *Factory
	engine  *Engine
}

func NewCoordinator(store TxStore, factory *Factory) *Coordinator {
	return &Coordinator{store: store, factory: factory, engine: &Engine{}}
}

// Generate materializes every instance the field's schedule mandates, inside
// one transaction. Rerunning without a schedule change adds nothing.
func (c *Coordinator) Generate(ctx context.Context, projectID ProjectID, fieldID FieldID) (*GenerationReport, error) {
	report := &GenerationReport{}
	err := c.store.WithTx(ctx, func(s Store) error {
		field, strategy, err := c.fieldAndStrategy(ctx, s, projectID, fieldID)
		if err != nil {
			return err
		}
		result, err := strategy.GenerateReceivables(ctx, s, field)
		if err != nil {
			return err
		}
		report.Added = result.Created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Recompute runs one reconciliation pass. When req.Generate is set, missing
// instances are materialized first, in the same transaction.
func (c *Coordinator) Recompute(ctx context.Context, req RecomputeRequest) (*RunStatistics, error) {
	if _, err := ParseUpdateStrategy(string(req.Update)); err != nil {
		return nil, err
	}
	update := req.Update
	if update == "" {
		update = UpdateException
	}

	var stats *RunStatistics
	err := c.store.WithTx(ctx, func(s Store) error {
		field, strategy, err := c.fieldAndStrategy(ctx, s, req.ProjectID, req.FieldID)
		if err != nil {
			return err
		}

		var instances []ReceivableInstance
		if req.Generate {
			result, err := strategy.GenerateReceivables(ctx, s, field)
			if err != nil {
				return err
			}
			instances = result.Instances
		} else {
			// A pure recompute pass does not materialize new instances.
			instances, err = s.ListInstances(ctx, field.ID)
			if err != nil {
				return fmt.Errorf("list instances for field %s: %w", field.ID, err)
			}
		}
		instances = filterInstances(instances, req.InstanceFilter)

		participants, err := s.ListParticipants(ctx, req.ProjectID)
		if err != nil {
			return fmt.Errorf("list participants for project %s: %w", req.ProjectID, err)
		}
		participants = filterParticipants(participants, req.ParticipantFilter)

		stats, err = c.engine.Reconcile(ctx, s, ReconcileInput{
			Field:        field,
			Strategy:     strategy,
			Instances:    instances,
			Participants: participants,
			Update:       update,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// List returns the stored receivables view, ordered by instance then
// participant display name. Read-only; runs outside any transaction.
func (c *Coordinator) List(ctx context.Context, projectID ProjectID, fieldID FieldID, instanceFilter string) ([]ListEntry, error) {
	field, err := c.loadField(ctx, c.store, projectID, fieldID)
	if err != nil {
		return nil, err
	}

	instances, err := c.store.ListInstances(ctx, field.ID)
	if err != nil {
		return nil, fmt.Errorf("list instances for field %s: %w", field.ID, err)
	}
	instances = filterInstances(instances, instanceFilter)
	SortInstances(instances)

	participants, err := c.store.ListParticipants(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list participants for project %s: %w", projectID, err)
	}
	byID := make(map[ParticipantID]Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}

	var entries []ListEntry
	for _, inst := range instances {
		data, err := c.store.ListData(ctx, inst.ID)
		if err != nil {
			return nil, fmt.Errorf("list data for instance %s: %w", inst.ID, err)
		}
		sort.Slice(data, func(i, j int) bool {
			pi, pj := byID[data[i].ParticipantID], byID[data[j].ParticipantID]
			if pi.DisplayName != pj.DisplayName {
				return pi.DisplayName < pj.DisplayName
			}
			return data[i].ParticipantID < data[j].ParticipantID
		})
		for _, d := range data {
			entries = append(entries, ListEntry{
				Instance:    inst,
				Participant: byID[d.ParticipantID],
				Amount:      d.Amount,
				DocumentRef: d.DocumentRef,
				Overridden:  d.Overridden,
			})
		}
	}
	return entries, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Coordinator) loadField(ctx context.Context, s Store, projectID ProjectID, fieldID FieldID) (FieldDescriptor, error) {
	field, err := s.GetField(ctx, fieldID)
	if err != nil {
		return FieldDescriptor{}, err
	}
	if field.ProjectID != projectID {
		// A field from another project is indistinguishable from a missing one.
		return FieldDescriptor{}, fmt.Errorf("%w: %s in project %s", ErrFieldNotFound, fieldID, projectID)
	}
	return field, nil
}

func (c *Coordinator) fieldAndStrategy(ctx context.Context, s Store, projectID ProjectID, fieldID FieldID) (FieldDescriptor, GeneratorStrategy, error) {
	field, err := c.loadField(ctx, s, projectID, fieldID)
	if err != nil {
		return FieldDescriptor{}, nil, err
	}
	strategy, err := c.factory.ForField(field)
	if err != nil {
		return FieldDescriptor{}, nil, err
	}
	return field, strategy, nil
}

func filterInstances(instances []ReceivableInstance, label string) []ReceivableInstance {
	if label == "" {
		return instances
	}
	var filtered []ReceivableInstance
	for _, inst := range instances {
		if inst.Label == label {
			filtered = append(filtered, inst)
		}
	}
	return filtered
}

func filterParticipants(participants []Participant, ids []ParticipantID) []Participant {
	if len(ids) == 0 {
		return participants
	}
	want := make(map[ParticipantID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var filtered []Participant
	for _, p := range participants {
		if want[p.ID] {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
