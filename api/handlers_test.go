package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camerata/receivables-engine/api"
	"github.com/camerata/receivables-engine/factory"
	"github.com/camerata/receivables-engine/insurance"
	"github.com/camerata/receivables-engine/receivables"
	"github.com/camerata/receivables-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := receivables.DefaultRegistry()
	insurance.Register(registry, store, store)
	coordinator := receivables.NewCoordinator(store, receivables.NewFactory(registry))

	server := httptest.NewServer(api.NewRouter(api.NewHandler(store, coordinator)))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// seedInsuranceProject drives the admin endpoints to build a complete project:
// two members, an insurance field, a rate and one insured viola.
func seedInsuranceProject(t *testing.T, base string) {
	t.Helper()

	resp := doJSON(t, http.MethodPost, base+"/api/projects",
		api.CreateProjectRequest{ID: "spring2024", Name: "Spring 2024"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, p := range []api.CreateParticipantRequest{
		{ID: "p-viola", DisplayName: "Viola Player", JoinedAt: "2020-01-01"},
		{ID: "p-none", DisplayName: "Singer", JoinedAt: "2020-01-01"},
	} {
		resp = doJSON(t, http.MethodPost, base+"/api/projects/spring2024/participants", p)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/projects/spring2024/fields", api.CreateFieldRequest{
		Descriptor: factory.DescriptorJSON{
			ID:           "insurance",
			ProjectID:    "spring2024",
			Name:         "Instrument Insurance",
			Multiplicity: "recurring",
			Generator:    "rate-derived",
			Schedule: &factory.ScheduleJSON{
				Frequency:   "yearly",
				Start:       "2024-01-01",
				LabelFormat: "Insurance %s",
			},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, base+"/api/admin/insurance/rates",
		api.RateRequest{Scope: "instrument", Rate: "0.005"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, base+"/api/admin/insurance/objects", api.InsuredObjectRequest{
		ID: "viola", ParticipantID: "p-viola", Label: "Viola",
		Scope:        "instrument",
		InsuredValue: api.AmountDTO{Value: 2000, Currency: "EUR"},
		From:         "2021-04-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// FULL FLOW
// =============================================================================

func TestAPI_GenerateRecomputeList(t *testing.T) {
	// GIVEN: A seeded insurance project
	// WHEN: Generating, recomputing and listing over HTTP
	// THEN: The viola player owes 10.00 EUR per year; the singer never appears

	server := newTestServer(t)
	seedInsuranceProject(t, server.URL)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/insurance/generate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[api.GenerationReportDTO](t, resp)
	require.NotEmpty(t, report.Added)
	assert.Equal(t, "Insurance 2024", report.Added[0].Label)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/insurance/recompute",
		api.RecomputeRequestDTO{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[api.RunStatisticsDTO](t, resp)
	assert.GreaterOrEqual(t, stats.Added, 1)
	assert.Zero(t, stats.Skipped)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/projects/spring2024/fields/insurance/receivables?instance=Insurance+2024", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decode[[]api.ReceivableRowDTO](t, resp)
	require.Len(t, rows, 1)

	assert.Equal(t, "p-viola", rows[0].ParticipantID)
	assert.Equal(t, 10.0, rows[0].Amount.Value)
	assert.Equal(t, "EUR", rows[0].Amount.Currency)
	assert.Equal(t, "insurance/2024/p-viola.pdf", rows[0].DocumentRef)
	assert.False(t, rows[0].Overridden)
}

func TestAPI_Recompute_GenerateFlag_MaterializesFirst(t *testing.T) {
	server := newTestServer(t)
	seedInsuranceProject(t, server.URL)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/insurance/recompute",
		api.RecomputeRequestDTO{Generate: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decode[api.RunStatisticsDTO](t, resp)
	assert.GreaterOrEqual(t, stats.Added, 1)
	assert.NotEmpty(t, stats.Instances)
}

// =============================================================================
// OVERRIDES AND CONFLICTS
// =============================================================================

func TestAPI_OverrideThenExceptionRecompute_Conflict(t *testing.T) {
	// GIVEN: An overridden amount that disagrees with the computed premium
	// WHEN: Recomputing under the default exception strategy
	// THEN: 409 with a rolled-back run; the skip strategy then succeeds

	server := newTestServer(t)
	seedInsuranceProject(t, server.URL)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/insurance/recompute",
		api.RecomputeRequestDTO{Generate: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/api/projects/spring2024/fields/insurance/receivables?instance=Insurance+2024", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := decode[[]api.ReceivableRowDTO](t, resp)
	require.Len(t, rows, 1)

	resp = doJSON(t, http.MethodPut, server.URL+"/api/admin/overrides", api.OverrideRequest{
		ParticipantID: "p-viola",
		InstanceID:    rows[0].InstanceID,
		Amount:        api.AmountDTO{Value: 5, Currency: "EUR"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/insurance/recompute",
		api.RecomputeRequestDTO{Update: "exception"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/insurance/recompute",
		api.RecomputeRequestDTO{Update: "skip"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[api.RunStatisticsDTO](t, resp)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, stats.Notices, 1)
	assert.Equal(t, "p-viola", stats.Notices[0].ParticipantID)

	// The override is still in place.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/projects/spring2024/fields/insurance/receivables?instance=Insurance+2024", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows = decode[[]api.ReceivableRowDTO](t, resp)
	require.Len(t, rows, 1)
	assert.Equal(t, 5.0, rows[0].Amount.Value)
	assert.True(t, rows[0].Overridden)
}

// =============================================================================
// VALIDATION AND ERROR MAPPING
// =============================================================================

func TestAPI_UnknownField_NotFound(t *testing.T) {
	server := newTestServer(t)
	seedInsuranceProject(t, server.URL)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/nope/generate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_UnknownUpdateStrategy_BadRequest(t *testing.T) {
	server := newTestServer(t)
	seedInsuranceProject(t, server.URL)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects/spring2024/fields/insurance/recompute",
		api.RecomputeRequestDTO{Update: "merge"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[api.ErrorResponse](t, resp)
	assert.NotEmpty(t, body.Error)
}

func TestAPI_CreateField_ProjectMismatch_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects",
		api.CreateProjectRequest{ID: "proj", Name: "Proj"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/api/projects/proj/fields", api.CreateFieldRequest{
		Descriptor: factory.DescriptorJSON{
			ID: "fee", ProjectID: "other", Multiplicity: "manual", Generator: "manual",
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CreateField_InvalidDescriptor_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/projects",
		api.CreateProjectRequest{ID: "proj", Name: "Proj"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Recurring without a schedule start is never materializable.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/projects/proj/fields", api.CreateFieldRequest{
		Descriptor: factory.DescriptorJSON{
			ID: "fee", ProjectID: "proj", Multiplicity: "recurring", Generator: "periodic",
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UnknownScope_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPut, server.URL+"/api/admin/insurance/rates",
		api.RateRequest{Scope: "yacht", Rate: "0.01"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UnknownProject_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/projects/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
