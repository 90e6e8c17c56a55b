/*
handlers.go - HTTP API handlers for the receivables engine

PURPOSE:
  Exposes the receivables engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the run coordinator and store.

ENDPOINTS:
  Projects:
    POST   /api/projects                          Create project
    GET    /api/projects/{projectID}              Get project

  Participants:
    GET    /api/projects/{projectID}/participants List participants
    POST   /api/projects/{projectID}/participants Register participant

  Fields:
    GET    /api/projects/{projectID}/fields       List field descriptors
    POST   /api/projects/{projectID}/fields       Create field from JSON descriptor

  Runs:
    POST   .../fields/{fieldID}/generate          Materialize missing instances
    POST   .../fields/{fieldID}/recompute         Run a reconciliation pass
    GET    .../fields/{fieldID}/instances         List instances
    GET    .../fields/{fieldID}/receivables       Stored receivables view

  Admin:
    PUT    /api/admin/overrides                   Pin a hand-edited value
    POST   /api/admin/insurance/objects           Register insured object
    PUT    /api/admin/insurance/rates             Set scope rate

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (also the insurance reference-data provider)
  - Coordinator: Generate/recompute/list runs

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Override conflict under the exception strategy
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/camerata/receivables-engine/factory"
	"github.com/camerata/receivables-engine/insurance"
	"github.com/camerata/receivables-engine/receivables"
	"github.com/camerata/receivables-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Coordinator *receivables.Coordinator
}

// NewHandler creates a new handler with the given store and coordinator.
func NewHandler(store *sqlite.Store, coordinator *receivables.Coordinator) *Handler {
	return &Handler{Store: store, Coordinator: coordinator}
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// CreateProject creates a new project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Project id and name are required", nil)
		return
	}

	project := receivables.Project{ID: receivables.ProjectID(req.ID), Name: req.Name}
	if err := h.Store.CreateProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project", err)
		return
	}

	writeJSON(w, http.StatusCreated, ProjectDTO{ID: req.ID, Name: req.Name})
}

// GetProject returns a single project.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := receivables.ProjectID(chi.URLParam(r, "projectID"))

	project, err := h.Store.GetProject(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get project", err)
		return
	}

	writeJSON(w, http.StatusOK, ProjectDTO{ID: string(project.ID), Name: project.Name})
}

// =============================================================================
// PARTICIPANT HANDLERS
// =============================================================================

// ListParticipants returns all participants of a project.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	projectID := receivables.ProjectID(chi.URLParam(r, "projectID"))

	participants, err := h.Store.ListParticipants(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list participants", err)
		return
	}

	dtos := make([]ParticipantDTO, len(participants))
	for i, p := range participants {
		dtos[i] = toParticipantDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateParticipant registers a participant in a project.
func (h *Handler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	projectID := receivables.ProjectID(chi.URLParam(r, "projectID"))

	var req CreateParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "Participant id and display_name are required", nil)
		return
	}

	joinedAt, err := parseDate(req.JoinedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid joined_at date", err)
		return
	}

	participant := receivables.Participant{
		ID:          receivables.ParticipantID(req.ID),
		ProjectID:   projectID,
		DisplayName: req.DisplayName,
		JoinedAt:    joinedAt,
	}
	if req.LeftAt != nil {
		leftAt, err := parseDate(*req.LeftAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid left_at date", err)
			return
		}
		participant.LeftAt = &leftAt
	}

	if err := h.Store.CreateParticipant(r.Context(), participant); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create participant", err)
		return
	}

	writeJSON(w, http.StatusCreated, toParticipantDTO(participant))
}

// =============================================================================
// FIELD HANDLERS
// =============================================================================

// ListFields returns all field descriptors of a project.
func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	projectID := receivables.ProjectID(chi.URLParam(r, "projectID"))

	fields, err := h.Store.ListFields(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list fields", err)
		return
	}

	dtos := make([]FieldDTO, len(fields))
	for i, fd := range fields {
		dtos[i] = toFieldDTO(fd)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateField creates a field descriptor from a JSON definition.
func (h *Handler) CreateField(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req CreateFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// The URL is authoritative for the owning project.
	if req.Descriptor.ProjectID == "" {
		req.Descriptor.ProjectID = projectID
	}
	if req.Descriptor.ProjectID != projectID {
		writeError(w, http.StatusBadRequest, "Descriptor project_id does not match URL", nil)
		return
	}

	fd, err := factory.FromJSON(req.Descriptor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid field descriptor", err)
		return
	}

	if err := h.Store.CreateField(r.Context(), fd); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create field", err)
		return
	}

	writeJSON(w, http.StatusCreated, toFieldDTO(fd))
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// Generate materializes every instance the field's schedule mandates.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	projectID := receivables.ProjectID(chi.URLParam(r, "projectID"))
	fieldID := receivables.FieldID(chi.URLParam(r, "fieldID"))

	report, err := h.Coordinator.Generate(r.Context(), projectID, fieldID)
	if err != nil {
		writeDomainError(w, "Generate run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, GenerationReportDTO{Added: toInstanceDTOs(report.Added)})
}

// Recompute runs one reconciliation pass over the field.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	projectID := receivables.ProjectID(chi.URLParam(r, "projectID"))
	fieldID := receivables.FieldID(chi.URLParam(r, "fieldID"))

	var req RecomputeRequestDTO
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	update, err := receivables.ParseUpdateStrategy(req.Update)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid update strategy", err)
		return
	}

	participants := make([]receivables.ParticipantID, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = receivables.ParticipantID(p)
	}

	stats, err := h.Coordinator.Recompute(r.Context(), receivables.RecomputeRequest{
		ProjectID:         projectID,
		FieldID:           fieldID,
		InstanceFilter:    req.Instance,
		ParticipantFilter: participants,
		Update:            update,
		Generate:          req.Generate,
	})
	if err != nil {
		writeDomainError(w, "Recompute run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toRunStatisticsDTO(stats))
}

// ListInstances returns the materialized instances of a field.
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	fieldID := receivables.FieldID(chi.URLParam(r, "fieldID"))

	instances, err := h.Store.ListInstances(r.Context(), fieldID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list instances", err)
		return
	}
	receivables.SortInstances(instances)

	writeJSON(w, http.StatusOK, toInstanceDTOs(instances))
}

// ListReceivables returns the stored receivables view for a field, optionally
// restricted to one instance label via ?instance=.
func (h *Handler) ListReceivables(w http.ResponseWriter, r *http.Request) {
	projectID := receivables.ProjectID(chi.URLParam(r, "projectID"))
	fieldID := receivables.FieldID(chi.URLParam(r, "fieldID"))
	instanceFilter := r.URL.Query().Get("instance")

	entries, err := h.Coordinator.List(r.Context(), projectID, fieldID, instanceFilter)
	if err != nil {
		writeDomainError(w, "Failed to list receivables", err)
		return
	}

	dtos := make([]ReceivableRowDTO, len(entries))
	for i, e := range entries {
		dtos[i] = ReceivableRowDTO{
			InstanceID:      string(e.Instance.ID),
			InstanceLabel:   e.Instance.Label,
			ParticipantID:   string(e.Participant.ID),
			ParticipantName: e.Participant.DisplayName,
			Amount:          toAmountDTO(e.Amount),
			DocumentRef:     e.DocumentRef,
			Overridden:      e.Overridden,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// SetOverride pins a hand-edited value for one (participant, instance) pair.
// The datum is created if absent, updated otherwise, and marked overridden
// either way.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ParticipantID == "" || req.InstanceID == "" {
		writeError(w, http.StatusBadRequest, "participant_id and instance_id are required", nil)
		return
	}

	currency := receivables.Currency(req.Amount.Currency)
	if currency == "" {
		currency = receivables.CurrencyEUR
	}

	datum := receivables.ParticipantDatum{
		ParticipantID: receivables.ParticipantID(req.ParticipantID),
		InstanceID:    receivables.InstanceID(req.InstanceID),
		Amount:        receivables.NewAmount(req.Amount.Value, currency),
		DocumentRef:   req.DocumentRef,
		Overridden:    true,
		UpdatedAt:     receivables.Today(),
	}

	err := h.Store.WithTx(r.Context(), func(s receivables.Store) error {
		prior, err := s.GetDatum(r.Context(), datum.ParticipantID, datum.InstanceID)
		if err != nil {
			return err
		}
		if prior == nil {
			return s.CreateDatum(r.Context(), datum)
		}
		return s.UpdateDatum(r.Context(), datum)
	})
	if err != nil {
		writeDomainError(w, "Failed to set override", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"participant_id": req.ParticipantID,
		"instance_id":    req.InstanceID,
		"amount":         req.Amount,
		"overridden":     true,
	})
}

// AddInsuredObject registers an insured instrument or accessory.
func (h *Handler) AddInsuredObject(w http.ResponseWriter, r *http.Request) {
	var req InsuredObjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "Object id and participant_id are required", nil)
		return
	}

	scope := insurance.Scope(req.Scope)
	if scope != insurance.ScopeInstrument && scope != insurance.ScopeAccessory {
		writeError(w, http.StatusBadRequest, "Unknown insurance scope", nil)
		return
	}

	from, err := parseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}

	currency := receivables.Currency(req.InsuredValue.Currency)
	if currency == "" {
		currency = receivables.CurrencyEUR
	}

	obj := insurance.InsuredObject{
		ID:            req.ID,
		ParticipantID: receivables.ParticipantID(req.ParticipantID),
		Label:         req.Label,
		Scope:         scope,
		InsuredValue:  receivables.NewAmount(req.InsuredValue.Value, currency),
		From:          from,
	}
	if req.Until != nil {
		until, err := parseDate(*req.Until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid until date", err)
			return
		}
		obj.Until = &until
	}

	if err := h.Store.AddInsuredObject(r.Context(), obj); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add insured object", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":             obj.ID,
		"participant_id": req.ParticipantID,
		"scope":          req.Scope,
	})
}

// SetRate sets the annual rate fraction for an insurance scope.
func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	scope := insurance.Scope(req.Scope)
	if scope != insurance.ScopeInstrument && scope != insurance.ScopeAccessory {
		writeError(w, http.StatusBadRequest, "Unknown insurance scope", nil)
		return
	}

	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}
	if rate.IsNegative() {
		writeError(w, http.StatusBadRequest, "Rate must not be negative", nil)
		return
	}

	if err := h.Store.SetRate(r.Context(), scope, rate); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set rate", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"scope": req.Scope, "rate": req.Rate})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(s string) (receivables.TimePoint, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return receivables.TimePoint{}, err
	}
	return receivables.NewTimePoint(t.Year(), t.Month(), t.Day()), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var conflict *receivables.ConflictError
	switch {
	case receivables.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, message, err)
	case receivables.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
