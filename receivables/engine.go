/*
engine.go - Reconciliation pass over participants x instances

PURPOSE:
  Drives one update pass: for every selected participant and instance, ask the
  generator strategy what the pair should cost, compare with the stored datum,
  apply the update strategy, and aggregate run statistics.

OUTCOMES:
  Each pair resolves to one of: added, removed, changed, skipped. A pair whose
  stored amount already equals the computed amount resolves to nothing and is
  not counted. A manually-overridden datum that disagrees with the computed
  value resolves per the update strategy; under "exception" the whole run
  aborts with a ConflictError and the surrounding transaction rolls back.

UPDATE STRATEGIES:
  exception  - abort the run on the first conflicting override (default)
  overwrite  - replace overridden values, clearing the override marker
  skip       - keep overridden values, count them and record a notice
  supplement - add-only: never touch any existing value, overridden or not

ORDERING:
  Participants are processed by display name then ID, instances by period
  start then label. Statistics and log output are therefore reproducible
  across repeated runs over the same input.

SEE ALSO:
  - generator.go: ComputeValue contract
  - coordinator.go: Wraps a pass in one store transaction
*/
package receivables

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// UPDATE STRATEGY - Conflict-resolution policy for overridden data
// =============================================================================

type UpdateStrategy string

const (
	UpdateException  UpdateStrategy = "exception"
	UpdateOverwrite  UpdateStrategy = "overwrite"
	UpdateSkip       UpdateStrategy = "skip"
	UpdateSupplement UpdateStrategy = "supplement"
)

// UpdateStrategies lists every supported strategy token.
var UpdateStrategies = []UpdateStrategy{
	UpdateException, UpdateOverwrite, UpdateSkip, UpdateSupplement,
}

// ParseUpdateStrategy validates a caller-supplied token. The empty string
// selects the default (exception). Unknown tokens fail before a run starts.
func ParseUpdateStrategy(token string) (UpdateStrategy, error) {
	if token == "" {
		return UpdateException, nil
	}
	for _, s := range UpdateStrategies {
		if string(s) == token {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUpdateStrategy, token)
}

// =============================================================================
// RUN STATISTICS - Ephemeral per-run aggregate
// =============================================================================

type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeRemoved Outcome = "removed"
	OutcomeChanged Outcome = "changed"
	OutcomeSkipped Outcome = "skipped"
)

// PairResult records the resolution of one (participant, instance) pair.
// Pairs that resolve to nothing produce no result.
type PairResult struct {
	ParticipantID ParticipantID
	InstanceID    InstanceID
	Outcome       Outcome
	Previous      *Amount
	Computed      *Amount
}

type Notice struct {
	ParticipantID ParticipantID
	InstanceID    InstanceID
	Message       string
}

// RunStatistics aggregates one run. Created fresh per run, reported to the
// caller, never persisted as a first-class record.
type RunStatistics struct {
	Added   int
	Removed int
	Changed int
	Skipped int

	Notices []Notice
	Results []PairResult

	// Touched identifiers, in processing order, deduplicated.
	Participants []ParticipantID
	Instances    []InstanceID
}

func (st *RunStatistics) touch(p ParticipantID, i InstanceID) {
	if len(st.Participants) == 0 || st.Participants[len(st.Participants)-1] != p {
		st.Participants = append(st.Participants, p)
	}
	for _, id := range st.Instances {
		if id == i {
			return
		}
	}
	st.Instances = append(st.Instances, i)
}

// =============================================================================
// RECONCILIATION ENGINE
// =============================================================================

// ReconcileInput is one pass over a field's participants and instances. The
// engine sorts both; callers only select scope.
type ReconcileInput struct {
	Field        FieldDescriptor
	Strategy     GeneratorStrategy
	Instances    []ReceivableInstance
	Participants []Participant
	Update       UpdateStrategy
}

type Engine struct {
	// Clock stamps datum updates. Defaults to Today.
	Clock func() TimePoint
}

func (e *Engine) now() TimePoint {
	if e.Clock != nil {
		return e.Clock()
	}
	return Today()
}

// Reconcile runs one pass and returns its statistics. Any returned error -
// persistence failure or an exception-strategy conflict - means the pass must
// not be committed; the caller's transaction handles the rollback.
func (e *Engine) Reconcile(ctx context.Context, s Store, in ReconcileInput) (*RunStatistics, error) {
	participants := append([]Participant(nil), in.Participants...)
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].DisplayName != participants[j].DisplayName {
			return participants[i].DisplayName < participants[j].DisplayName
		}
		return participants[i].ID < participants[j].ID
	})

	instances := append([]ReceivableInstance(nil), in.Instances...)
	SortInstances(instances)

	stats := &RunStatistics{}
	for _, participant := range participants {
		for _, instance := range instances {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := e.reconcilePair(ctx, s, in, participant, instance, stats); err != nil {
				return nil, err
			}
		}
	}
	return stats, nil
}

func (e *Engine) reconcilePair(ctx context.Context, s Store, in ReconcileInput, participant Participant, instance ReceivableInstance, stats *RunStatistics) error {
	prior, err := s.GetDatum(ctx, participant.ID, instance.ID)
	if err != nil {
		return fmt.Errorf("load datum (%s, %s): %w", participant.ID, instance.ID, err)
	}

	computed, err := in.Strategy.ComputeValue(ctx, participant, instance, prior)
	if err != nil {
		return fmt.Errorf("compute value (%s, %s): %w", participant.ID, instance.ID, err)
	}

	switch {
	case prior == nil && computed == nil:
		// Receivable does not apply and never did.
		return nil

	case prior == nil:
		return e.add(ctx, s, participant, instance, *computed, stats)

	case computed == nil:
		return e.remove(ctx, s, participant, instance, *prior, stats)

	default:
		return e.update(ctx, s, in.Update, participant, instance, *prior, *computed, stats)
	}
}

func (e *Engine) add(ctx context.Context, s Store, participant Participant, instance ReceivableInstance, computed ComputedValue, stats *RunStatistics) error {
	datum := ParticipantDatum{
		ParticipantID: participant.ID,
		InstanceID:    instance.ID,
		Amount:        computed.Amount,
		DocumentRef:   computed.DocumentRef,
		Overridden:    false,
		UpdatedAt:     e.now(),
	}
	if err := s.CreateDatum(ctx, datum); err != nil {
		return fmt.Errorf("create datum (%s, %s): %w", participant.ID, instance.ID, err)
	}

	stats.Added++
	stats.touch(participant.ID, instance.ID)
	amount := computed.Amount
	stats.Results = append(stats.Results, PairResult{
		ParticipantID: participant.ID,
		InstanceID:    instance.ID,
		Outcome:       OutcomeAdded,
		Computed:      &amount,
	})
	return nil
}

func (e *Engine) remove(ctx context.Context, s Store, participant Participant, instance ReceivableInstance, prior ParticipantDatum, stats *RunStatistics) error {
	if err := s.DeleteDatum(ctx, participant.ID, instance.ID); err != nil {
		return fmt.Errorf("delete datum (%s, %s): %w", participant.ID, instance.ID, err)
	}

	stats.Removed++
	stats.touch(participant.ID, instance.ID)
	previous := prior.Amount
	stats.Results = append(stats.Results, PairResult{
		ParticipantID: participant.ID,
		InstanceID:    instance.ID,
		Outcome:       OutcomeRemoved,
		Previous:      &previous,
	})
	return nil
}

func (e *Engine) update(ctx context.Context, s Store, update UpdateStrategy, participant Participant, instance ReceivableInstance, prior ParticipantDatum, computed ComputedValue, stats *RunStatistics) error {
	if prior.Amount.Equal(computed.Amount) {
		// Stored value already matches. Not counted.
		return nil
	}

	overwrite := false
	switch {
	case !prior.Overridden:
		// System-computed values follow the recompute, except under
		// supplement, which never modifies existing data.
		overwrite = update != UpdateSupplement

	case update == UpdateException:
		return &ConflictError{
			ParticipantID: participant.ID,
			InstanceID:    instance.ID,
			Stored:        prior.Amount,
			Computed:      computed.Amount,
		}

	case update == UpdateOverwrite:
		overwrite = true
	}

	previous := prior.Amount
	amount := computed.Amount
	stats.touch(participant.ID, instance.ID)

	if !overwrite {
		stats.Skipped++
		stats.Notices = append(stats.Notices, Notice{
			ParticipantID: participant.ID,
			InstanceID:    instance.ID,
			Message: fmt.Sprintf("kept stored value %s for %q; computed value is %s",
				prior.Amount, instance.Label, computed.Amount),
		})
		stats.Results = append(stats.Results, PairResult{
			ParticipantID: participant.ID,
			InstanceID:    instance.ID,
			Outcome:       OutcomeSkipped,
			Previous:      &previous,
			Computed:      &amount,
		})
		return nil
	}

	datum := ParticipantDatum{
		ParticipantID: participant.ID,
		InstanceID:    instance.ID,
		Amount:        computed.Amount,
		DocumentRef:   computed.DocumentRef,
		Overridden:    false,
		UpdatedAt:     e.now(),
	}
	if err := s.UpdateDatum(ctx, datum); err != nil {
		return fmt.Errorf("update datum (%s, %s): %w", participant.ID, instance.ID, err)
	}

	stats.Changed++
	stats.Results = append(stats.Results, PairResult{
		ParticipantID: participant.ID,
		InstanceID:    instance.ID,
		Outcome:       OutcomeChanged,
		Previous:      &previous,
		Computed:      &amount,
	})
	return nil
}
