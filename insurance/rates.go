/*
Package insurance provides the instrument-insurance domain on top of the
receivables engine.

PURPOSE:
  Orchestra members insure instruments and accessories through the project.
  The yearly premium a member owes is derived from a rate table: for each
  insured object covered during the billing period, insured value times the
  annual rate for the object's scope, summed and rounded to cents.

KEY CONCEPTS:
  - InsuredObject: One insured instrument/accessory with value and coverage window
  - RateTable:     Annual rate fraction per insurance scope
  - Generator:     The rate-derived strategy (strategy.go)

USAGE:
  registry := receivables.DefaultRegistry()
  insurance.Register(registry, rateTable, objectRegistry)
*/
package insurance

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/camerata/receivables-engine/receivables"
)

// =============================================================================
// SCOPE AND INSURED OBJECT
// =============================================================================

// Scope is the insurance tariff class of an object.
type Scope string

const (
	ScopeInstrument Scope = "instrument"
	ScopeAccessory  Scope = "accessory"
)

// InsuredObject is one insured instrument or accessory.
type InsuredObject struct {
	ID            string
	ParticipantID receivables.ParticipantID
	Label         string
	Scope         Scope
	InsuredValue  receivables.Amount

	// Coverage window. Until nil means open-ended.
	From  receivables.TimePoint
	Until *receivables.TimePoint
}

// CoveredDuring reports whether the object's coverage overlaps the period.
func (o InsuredObject) CoveredDuring(p receivables.Period) bool {
	if o.From.After(p.End) {
		return false
	}
	if o.Until != nil && o.Until.Before(p.Start) {
		return false
	}
	return true
}

// =============================================================================
// REFERENCE DATA INTERFACES
// =============================================================================

// RateTable resolves the annual rate fraction for a scope
// (e.g. 0.005 = 0.5% of insured value per year).
type RateTable interface {
	RateFor(ctx context.Context, scope Scope) (decimal.Decimal, error)
}

// ObjectRegistry lists a participant's insured objects.
type ObjectRegistry interface {
	ObjectsFor(ctx context.Context, participantID receivables.ParticipantID) ([]InsuredObject, error)
}

// ErrUnknownScope is returned for scopes without a tariff entry.
var ErrUnknownScope = fmt.Errorf("no insurance rate for scope")

// =============================================================================
// MEMORY IMPLEMENTATIONS (testing/dev)
// =============================================================================

type MemoryRateTable struct {
	mu    sync.RWMutex
	rates map[Scope]decimal.Decimal
}

func NewMemoryRateTable() *MemoryRateTable {
	return &MemoryRateTable{rates: make(map[Scope]decimal.Decimal)}
}

func (t *MemoryRateTable) SetRate(scope Scope, rate decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[scope] = rate
}

func (t *MemoryRateTable) RateFor(_ context.Context, scope Scope) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rate, ok := t.rates[scope]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}
	return rate, nil
}

type MemoryRegistry struct {
	mu      sync.RWMutex
	objects map[receivables.ParticipantID][]InsuredObject
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{objects: make(map[receivables.ParticipantID][]InsuredObject)}
}

func (r *MemoryRegistry) Add(obj InsuredObject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[obj.ParticipantID] = append(r.objects[obj.ParticipantID], obj)
}

func (r *MemoryRegistry) ObjectsFor(_ context.Context, participantID receivables.ParticipantID) ([]InsuredObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]InsuredObject(nil), r.objects[participantID]...), nil
}
