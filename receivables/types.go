/*
Package receivables provides the core recurring-receivables engine.

PURPOSE:
  This package contains the domain types and algorithms for materializing
  periodic financial obligations ("receivables") as concrete instances,
  computing what each project participant owes per instance, and reconciling
  the computed amounts against stored - possibly hand-edited - values.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity with a currency
  - FieldDescriptor: Declares a receivable type and which generator produces it
  - ReceivableInstance: One materialized occurrence (e.g. "Insurance 2024")
  - ParticipantDatum: The authoritative amount one participant owes per instance
  - Participant: A project member with a membership window

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing project/field/instance IDs
  3. Stability: Instance option keys are generated once and never reused
  4. Auditability: Every datum carries an overridden marker and update time

SEE ALSO:
  - generator.go: Generator strategies that materialize instances and compute values
  - engine.go: Reconciliation pass and update strategies
  - store.go: Persistence interfaces
*/
package receivables

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Monetary quantity with currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Currency: currency}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) Round(places int32) Amount    { return Amount{Value: a.Value.Round(places), Currency: a.Currency} }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) Equal(b Amount) bool          { return a.Currency == b.Currency && a.Value.Equal(b.Value) }

func (a Amount) String() string {
	return a.Value.StringFixed(2) + " " + string(a.Currency)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProjectID string
type FieldID string
type InstanceID string
type ParticipantID string

// OptionKey is the opaque, stable identifier of a ReceivableInstance.
// Generated once at materialization, unique within a field, never reused.
type OptionKey string

// =============================================================================
// FIELD DESCRIPTOR - Declares a receivable type within a project
// =============================================================================

// Kind identifies what a field holds. The engine only operates on receivables;
// other kinds exist in the surrounding application and are ignored here.
type Kind string

const (
	KindReceivable Kind = "receivable"
)

// Multiplicity declares how many instances a field may have and who creates them.
type Multiplicity string

const (
	// MultiplicityRecurring: instances are materialized by a generator schedule.
	MultiplicityRecurring Multiplicity = "recurring"

	// MultiplicitySingle: exactly one instance, created with the field.
	MultiplicitySingle Multiplicity = "single"

	// MultiplicityManual: instances are curated by hand, never generated.
	MultiplicityManual Multiplicity = "manual"
)

// GeneratorTag selects the generator strategy for a field. The set is closed:
// the factory rejects anything outside these four at construction time.
type GeneratorTag string

const (
	TagPeriodic    GeneratorTag = "periodic"
	TagManual      GeneratorTag = "manual"
	TagRateDerived GeneratorTag = "rate-derived"
	TagNoOp        GeneratorTag = "noop"
)

// FieldDescriptor identifies a recurring-receivable type within a project.
// Multiplicity and Kind are immutable once instances exist; changing them is a
// guarded administrative operation outside this engine.
type FieldDescriptor struct {
	ID           FieldID
	ProjectID    ProjectID
	Name         string
	Kind         Kind
	Multiplicity Multiplicity
	Generator    GeneratorTag

	// Schedule drives instance materialization for recurring fields.
	Schedule Schedule

	// Baseline is the reference amount a new instance starts from. The
	// periodic generator charges it to every applicable participant.
	Baseline Amount
}

// =============================================================================
// RECEIVABLE INSTANCE - One materialized occurrence of a field
// =============================================================================

type ReceivableInstance struct {
	ID       InstanceID
	FieldID  FieldID
	Key      OptionKey
	Label    string
	Baseline Amount

	// Period covers the time slice this occurrence bills for. Period.Start is
	// the natural key the periodic generator deduplicates on.
	Period Period
}

// =============================================================================
// PROJECT - Owning scope for fields and participants
// =============================================================================

type Project struct {
	ID   ProjectID
	Name string
}

// =============================================================================
// PARTICIPANT - Project member with a membership window
// =============================================================================

type Participant struct {
	ID          ParticipantID
	ProjectID   ProjectID
	DisplayName string

	// Membership window. LeftAt nil means still a member.
	JoinedAt TimePoint
	LeftAt   *TimePoint
}

// MemberDuring reports whether the participant's membership window overlaps
// the given period. Receivables only apply to overlapping participants.
func (p Participant) MemberDuring(period Period) bool {
	if p.JoinedAt.After(period.End) {
		return false
	}
	if p.LeftAt != nil && p.LeftAt.Before(period.Start) {
		return false
	}
	return true
}

// =============================================================================
// PARTICIPANT DATUM - Authoritative amount owed per (participant, instance)
// =============================================================================

// ParticipantDatum is the join record between a participant and an instance.
// At most one exists per pair; absence means the receivable does not apply.
// Overridden marks hand-edited values - the synchronization contract that
// tells a future run whether it may silently overwrite.
type ParticipantDatum struct {
	ParticipantID ParticipantID
	InstanceID    InstanceID
	Amount        Amount
	DocumentRef   string
	Overridden    bool
	UpdatedAt     TimePoint
}

// =============================================================================
// COMPUTED VALUE - Result of a generator's value computation
// =============================================================================

// ComputedValue is what a generator says a participant should owe for an
// instance, plus the supporting document backing the amount (may be empty).
type ComputedValue struct {
	Amount      Amount
	DocumentRef string
}
