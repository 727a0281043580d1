package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aequitas-ai/lvcop-go/pkg/testutil"
)

func TestForecasts_Generate(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)

	var body map[string]any
	stub.Handle(http.MethodPost, "/forecasts/generate", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		stub.WriteWrapped(w, r, http.StatusCreated, map[string]any{
			"id":            "f-1",
			"forecast_type": "daily",
			"target_date":   "2026-08-25",
			"horizon_days":  5,
			// Decimals arrive as quoted strings on this platform.
			"predicted_net_flow_p50": "-1250000.50",
			"predicted_net_flow_p5":  "-4100000.00",
			"predicted_net_flow_p95": "1820000.25",
			"currency":               "USD",
			"regime":                 "elevated",
			"regime_confidence":      "0.83",
			"confidence_score":       "0.71",
			"model_name":             "lightgbm_quantile",
			"model_version":          "2.3.1",
		}, "Forecast generated")
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	f, err := c.Forecasts().Generate(ctx, GenerateForecastParams{
		ForecastType: ForecastDaily,
		TargetDate:   Time{Time: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)},
		HorizonDays:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, "daily", body["forecast_type"])
	assert.EqualValues(t, 5, body["horizon_days"])

	assert.Equal(t, "f-1", f.ID)
	assert.Equal(t, RegimeElevated, f.Regime)
	assert.Equal(t, Amount(-1250000.50), f.PredictedNetFlowP50)
	assert.Equal(t, Amount(0.83), f.RegimeConfidence)
	assert.Equal(t, "lightgbm_quantile", f.ModelName)
	assert.Equal(t, 25, f.TargetDate.Day())
}

func TestForecasts_DailySendsTargetDate(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)

	var query string
	stub.Handle(http.MethodGet, "/forecasts/daily", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("target_date")
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"id": "f-2", "regime": "steady_state"}, "")
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	f, err := c.Forecasts().Daily(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", query)
	assert.Equal(t, RegimeSteadyState, f.Regime)
}

func TestForecasts_ListWithFilters(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)

	var q map[string]string
	stub.Handle(http.MethodGet, "/forecasts", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		q = map[string]string{
			"page":       values.Get("page"),
			"page_size":  values.Get("page_size"),
			"regime":     values.Get("regime"),
			"start_date": values.Get("start_date"),
		}
		stub.WriteList(w, r, []map[string]any{
			{"id": "f-1", "regime": "crisis", "predicted_net_flow_p50": "-9000000"},
			{"id": "f-2", "regime": "crisis", "predicted_net_flow_p50": "-7500000"},
		}, 2, 20, 42)
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	items, pagination, err := c.Forecasts().List(ctx, ForecastListParams{
		ListOptions: ListOptions{Page: 2, PageSize: 20},
		StartDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Regime:      RegimeCrisis,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"page":       "2",
		"page_size":  "20",
		"regime":     "crisis",
		"start_date": "2026-01-01",
	}, q)

	require.Len(t, items, 2)
	assert.Equal(t, Amount(-9000000), items[0].PredictedNetFlowP50)
	require.NotNil(t, pagination)
	assert.Equal(t, 42, pagination.TotalItems)
	assert.Equal(t, 3, pagination.TotalPages)
	assert.True(t, pagination.HasNext)
}

func TestForecasts_GetEscapesID(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)

	stub.Handle(http.MethodGet, "/forecasts/{id}", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"id": "f-3"}, "")
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	f, err := c.Forecasts().Get(ctx, "f-3")
	require.NoError(t, err)
	assert.Equal(t, "f-3", f.ID)
}

func TestForecasts_AccuracySummary(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)

	stub.Handle(http.MethodGet, "/forecasts/accuracy/summary", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{
			"total_forecasts":      30,
			"mape":                 "0.081",
			"directional_accuracy": "0.87",
			"within_90_ci":         "0.93",
		}, "")
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	m, err := c.Forecasts().AccuracySummary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 30, m.TotalForecasts)
	assert.Equal(t, Amount(0.081), m.MAPE)
	assert.Equal(t, Amount(0.93), m.Within90CI)
}
