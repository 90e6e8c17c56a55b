/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Project:
    ProjectDTO, CreateProjectRequest

  Participant:
    ParticipantDTO, CreateParticipantRequest

  Field:
    FieldDTO, CreateFieldRequest (wraps factory.DescriptorJSON)

  Runs:
    GenerationReportDTO, RecomputeRequestDTO, RunStatisticsDTO

  Receivables view:
    ReceivableRowDTO

  Insurance admin:
    InsuredObjectRequest, RateRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/descriptor.go: DescriptorJSON type
*/
package api

import (
	"github.com/camerata/receivables-engine/factory"
	"github.com/camerata/receivables-engine/receivables"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ProjectDTO represents a project in API responses.
type ProjectDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateProjectRequest is the request to create a project.
type CreateProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParticipantDTO represents a project participant.
type ParticipantDTO struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	DisplayName string  `json:"display_name"`
	JoinedAt    string  `json:"joined_at"`
	LeftAt      *string `json:"left_at,omitempty"`
}

// CreateParticipantRequest is the request to register a participant.
type CreateParticipantRequest struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	JoinedAt    string  `json:"joined_at"`         // 2006-01-02
	LeftAt      *string `json:"left_at,omitempty"` // 2006-01-02
}

// FieldDTO represents a field descriptor in API responses.
type FieldDTO struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	Name         string       `json:"name"`
	Kind         string       `json:"kind"`
	Multiplicity string       `json:"multiplicity"`
	Generator    string       `json:"generator"`
	Schedule     *ScheduleDTO `json:"schedule,omitempty"`
	Baseline     *AmountDTO   `json:"baseline,omitempty"`
}

// ScheduleDTO represents a field's materialization cadence.
type ScheduleDTO struct {
	Frequency   string `json:"frequency"`
	Start       string `json:"start"`
	LabelFormat string `json:"label_format,omitempty"`
}

// AmountDTO represents a monetary amount.
type AmountDTO struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// CreateFieldRequest is the request to create a field from a JSON descriptor.
type CreateFieldRequest struct {
	Descriptor factory.DescriptorJSON `json:"descriptor"`
}

// InstanceDTO represents one materialized receivable instance.
type InstanceDTO struct {
	ID          string     `json:"id"`
	FieldID     string     `json:"field_id"`
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	PeriodStart string     `json:"period_start"`
	PeriodEnd   string     `json:"period_end"`
	Baseline    *AmountDTO `json:"baseline,omitempty"`
}

// GenerationReportDTO is the result of a generate run.
type GenerationReportDTO struct {
	Added []InstanceDTO `json:"added"`
}

// RecomputeRequestDTO selects scope and policy for a recompute run.
type RecomputeRequestDTO struct {
	Update       string   `json:"update,omitempty"`       // exception, overwrite, skip, supplement
	Generate     bool     `json:"generate,omitempty"`     // materialize missing instances first
	Instance     string   `json:"instance,omitempty"`     // exact instance label
	Participants []string `json:"participants,omitempty"` // participant IDs; empty = all
}

// NoticeDTO is one human-readable note produced by a run.
type NoticeDTO struct {
	ParticipantID string `json:"participant_id"`
	InstanceID    string `json:"instance_id"`
	Message       string `json:"message"`
}

// RunStatisticsDTO is the result of a recompute run.
type RunStatisticsDTO struct {
	Added        int         `json:"added"`
	Removed      int         `json:"removed"`
	Changed      int         `json:"changed"`
	Skipped      int         `json:"skipped"`
	Notices      []NoticeDTO `json:"notices"`
	Participants []string    `json:"participants"`
	Instances    []string    `json:"instances"`
}

// ReceivableRowDTO is one row of the receivables view.
type ReceivableRowDTO struct {
	InstanceID      string    `json:"instance_id"`
	InstanceLabel   string    `json:"instance_label"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Amount          AmountDTO `json:"amount"`
	DocumentRef     string    `json:"document_ref,omitempty"`
	Overridden      bool      `json:"overridden"`
}

// OverrideRequest pins a hand-edited value for one (participant, instance)
// pair. Overridden data survives recompute runs per the update strategy.
type OverrideRequest struct {
	ParticipantID string    `json:"participant_id"`
	InstanceID    string    `json:"instance_id"`
	Amount        AmountDTO `json:"amount"`
	DocumentRef   string    `json:"document_ref,omitempty"`
}

// InsuredObjectRequest registers an insured instrument or accessory.
type InsuredObjectRequest struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Label         string    `json:"label"`
	Scope         string    `json:"scope"` // instrument, accessory
	InsuredValue  AmountDTO `json:"insured_value"`
	From          string    `json:"from"`            // 2006-01-02
	Until         *string   `json:"until,omitempty"` // 2006-01-02
}

// RateRequest sets the annual rate fraction for an insurance scope.
type RateRequest struct {
	Scope string `json:"scope"`
	Rate  string `json:"rate"` // decimal string, e.g. "0.005"
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAmountDTO(a receivables.Amount) AmountDTO {
	value, _ := a.Value.Float64()
	return AmountDTO{Value: value, Currency: string(a.Currency)}
}

func toInstanceDTO(inst receivables.ReceivableInstance) InstanceDTO {
	dto := InstanceDTO{
		ID:          string(inst.ID),
		FieldID:     string(inst.FieldID),
		Key:         string(inst.Key),
		Label:       inst.Label,
		PeriodStart: inst.Period.Start.String(),
		PeriodEnd:   inst.Period.End.String(),
	}
	if !inst.Baseline.IsZero() {
		baseline := toAmountDTO(inst.Baseline)
		dto.Baseline = &baseline
	}
	return dto
}

func toInstanceDTOs(instances []receivables.ReceivableInstance) []InstanceDTO {
	dtos := make([]InstanceDTO, len(instances))
	for i, inst := range instances {
		dtos[i] = toInstanceDTO(inst)
	}
	return dtos
}

func toFieldDTO(fd receivables.FieldDescriptor) FieldDTO {
	dto := FieldDTO{
		ID:           string(fd.ID),
		ProjectID:    string(fd.ProjectID),
		Name:         fd.Name,
		Kind:         string(fd.Kind),
		Multiplicity: string(fd.Multiplicity),
		Generator:    string(fd.Generator),
	}
	if !fd.Schedule.Start.IsZero() {
		dto.Schedule = &ScheduleDTO{
			Frequency:   string(fd.Schedule.Frequency),
			Start:       fd.Schedule.Start.String(),
			LabelFormat: fd.Schedule.LabelFormat,
		}
	}
	if !fd.Baseline.IsZero() {
		baseline := toAmountDTO(fd.Baseline)
		dto.Baseline = &baseline
	}
	return dto
}

func toParticipantDTO(p receivables.Participant) ParticipantDTO {
	dto := ParticipantDTO{
		ID:          string(p.ID),
		ProjectID:   string(p.ProjectID),
		DisplayName: p.DisplayName,
		JoinedAt:    p.JoinedAt.String(),
	}
	if p.LeftAt != nil {
		left := p.LeftAt.String()
		dto.LeftAt = &left
	}
	return dto
}

func toRunStatisticsDTO(stats *receivables.RunStatistics) RunStatisticsDTO {
	dto := RunStatisticsDTO{
		Added:        stats.Added,
		Removed:      stats.Removed,
		Changed:      stats.Changed,
		Skipped:      stats.Skipped,
		Notices:      make([]NoticeDTO, len(stats.Notices)),
		Participants: make([]string, len(stats.Participants)),
		Instances:    make([]string, len(stats.Instances)),
	}
	for i, n := range stats.Notices {
		dto.Notices[i] = NoticeDTO{
			ParticipantID: string(n.ParticipantID),
			InstanceID:    string(n.InstanceID),
			Message:       n.Message,
		}
	}
	for i, p := range stats.Participants {
		dto.Participants[i] = string(p)
	}
	for i, inst := range stats.Instances {
		dto.Instances[i] = string(inst)
	}
	return dto
}
