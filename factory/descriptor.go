/*
Package factory provides JSON to Go field-descriptor conversion.

PURPOSE:
  Converts JSON field-descriptor definitions into receivables.FieldDescriptor
  values. This enables field configuration without code changes - a treasurer
  can define receivable fields in JSON, and the factory creates the proper Go
  structs.

JSON SCHEMA:
  {
    "id": "insurance",
    "project_id": "spring2024",
    "name": "Instrument Insurance",
    "kind": "receivable",
    "multiplicity": "recurring",
    "generator": "rate-derived",
    "schedule": {
      "frequency": "yearly",
      "start": "2020-01-01",
      "label_format": "Insurance %s"
    },
    "baseline": {"value": 25, "currency": "EUR"}
  }

KEY FEATURES:
  - Validates multiplicity, generator tag and schedule frequency
  - Sets sensible defaults (kind receivable, EUR, yearly)
  - Rejects recurring fields without a schedule start

USAGE:
  fd, err := factory.ParseDescriptor(jsonString)
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/camerata/receivables-engine/receivables"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DescriptorJSON is the JSON representation of a field descriptor.
type DescriptorJSON struct {
	ID           string        `json:"id"`
	ProjectID    string        `json:"project_id"`
	Name         string        `json:"name"`
	Kind         string        `json:"kind,omitempty"`
	Multiplicity string        `json:"multiplicity"`
	Generator    string        `json:"generator"`
	Schedule     *ScheduleJSON `json:"schedule,omitempty"`
	Baseline     *AmountJSON   `json:"baseline,omitempty"`
}

// ScheduleJSON represents the materialization cadence.
type ScheduleJSON struct {
	Frequency   string `json:"frequency,omitempty"`   // yearly, quarterly, monthly
	Start       string `json:"start"`                 // 2006-01-02
	LabelFormat string `json:"label_format,omitempty"`
}

// AmountJSON represents a monetary amount.
type AmountJSON struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

var multiplicities = map[string]receivables.Multiplicity{
	string(receivables.MultiplicityRecurring): receivables.MultiplicityRecurring,
	string(receivables.MultiplicitySingle):    receivables.MultiplicitySingle,
	string(receivables.MultiplicityManual):    receivables.MultiplicityManual,
}

var generators = map[string]receivables.GeneratorTag{
	string(receivables.TagPeriodic):    receivables.TagPeriodic,
	string(receivables.TagManual):      receivables.TagManual,
	string(receivables.TagRateDerived): receivables.TagRateDerived,
	string(receivables.TagNoOp):        receivables.TagNoOp,
}

var frequencies = map[string]receivables.Frequency{
	string(receivables.FreqYearly):    receivables.FreqYearly,
	string(receivables.FreqQuarterly): receivables.FreqQuarterly,
	string(receivables.FreqMonthly):   receivables.FreqMonthly,
}

// ParseDescriptor converts a JSON definition into a FieldDescriptor.
func ParseDescriptor(jsonStr string) (receivables.FieldDescriptor, error) {
	var dj DescriptorJSON
	if err := json.Unmarshal([]byte(jsonStr), &dj); err != nil {
		return receivables.FieldDescriptor{}, fmt.Errorf("invalid descriptor JSON: %w", err)
	}
	return FromJSON(dj)
}

// FromJSON converts an already-decoded definition into a FieldDescriptor.
func FromJSON(dj DescriptorJSON) (receivables.FieldDescriptor, error) {
	if dj.ID == "" || dj.ProjectID == "" {
		return receivables.FieldDescriptor{}, fmt.Errorf("descriptor requires id and project_id")
	}

	kind := receivables.KindReceivable
	if dj.Kind != "" && dj.Kind != string(receivables.KindReceivable) {
		return receivables.FieldDescriptor{}, fmt.Errorf("unsupported kind %q", dj.Kind)
	}

	multiplicity, ok := multiplicities[dj.Multiplicity]
	if !ok {
		return receivables.FieldDescriptor{}, fmt.Errorf("unknown multiplicity %q", dj.Multiplicity)
	}

	generator, ok := generators[dj.Generator]
	if !ok {
		return receivables.FieldDescriptor{}, fmt.Errorf("unknown generator %q", dj.Generator)
	}

	fd := receivables.FieldDescriptor{
		ID:           receivables.FieldID(dj.ID),
		ProjectID:    receivables.ProjectID(dj.ProjectID),
		Name:         dj.Name,
		Kind:         kind,
		Multiplicity: multiplicity,
		Generator:    generator,
	}

	if dj.Baseline != nil {
		currency := receivables.Currency(dj.Baseline.Currency)
		if currency == "" {
			currency = receivables.CurrencyEUR
		}
		fd.Baseline = receivables.NewAmount(dj.Baseline.Value, currency)
	}

	if dj.Schedule != nil {
		schedule, err := parseSchedule(*dj.Schedule)
		if err != nil {
			return receivables.FieldDescriptor{}, err
		}
		fd.Schedule = schedule
	}

	if multiplicity == receivables.MultiplicityRecurring && fd.Schedule.Start.IsZero() {
		return receivables.FieldDescriptor{}, fmt.Errorf("recurring field %q requires a schedule start", dj.ID)
	}

	return fd, nil
}

func parseSchedule(sj ScheduleJSON) (receivables.Schedule, error) {
	frequency := receivables.FreqYearly
	if sj.Frequency != "" {
		var ok bool
		frequency, ok = frequencies[sj.Frequency]
		if !ok {
			return receivables.Schedule{}, fmt.Errorf("unknown schedule frequency %q", sj.Frequency)
		}
	}

	start, err := time.Parse("2006-01-02", sj.Start)
	if err != nil {
		return receivables.Schedule{}, fmt.Errorf("invalid schedule start %q: %w", sj.Start, err)
	}

	return receivables.Schedule{
		Frequency:   frequency,
		Start:       receivables.NewTimePoint(start.Year(), start.Month(), start.Day()),
		LabelFormat: sj.LabelFormat,
	}, nil
}

// =============================================================================
// PRESETS - Common field definitions
// =============================================================================

// InstrumentInsuranceJSON returns JSON for a yearly rate-derived insurance field.
func InstrumentInsuranceJSON(id, projectID, name string, startYear int) string {
	dj := DescriptorJSON{
		ID:           id,
		ProjectID:    projectID,
		Name:         name,
		Multiplicity: string(receivables.MultiplicityRecurring),
		Generator:    string(receivables.TagRateDerived),
		Schedule: &ScheduleJSON{
			Frequency:   string(receivables.FreqYearly),
			Start:       fmt.Sprintf("%04d-01-01", startYear),
			LabelFormat: "Insurance %s",
		},
	}
	b, _ := json.MarshalIndent(dj, "", "  ")
	return string(b)
}

// MembershipFeeJSON returns JSON for a yearly flat membership fee field.
func MembershipFeeJSON(id, projectID, name string, startYear int, annualFee float64) string {
	dj := DescriptorJSON{
		ID:           id,
		ProjectID:    projectID,
		Name:         name,
		Multiplicity: string(receivables.MultiplicityRecurring),
		Generator:    string(receivables.TagPeriodic),
		Schedule: &ScheduleJSON{
			Frequency:   string(receivables.FreqYearly),
			Start:       fmt.Sprintf("%04d-01-01", startYear),
			LabelFormat: "Membership %s",
		},
		Baseline: &AmountJSON{Value: annualFee, Currency: string(receivables.CurrencyEUR)},
	}
	b, _ := json.MarshalIndent(dj, "", "  ")
	return string(b)
}
