package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Regime classifies market conditions. The forecasting engine blends its
// steady-state and crisis models according to the active regime.
type Regime string

const (
	RegimeSteadyState Regime = "steady_state"
	RegimeElevated    Regime = "elevated"
	RegimeCrisis      Regime = "crisis"
)

// ForecastType selects the forecasting cadence.
type ForecastType string

const (
	ForecastDaily    ForecastType = "daily"
	ForecastIntraday ForecastType = "intraday"
	ForecastRealtime ForecastType = "realtime"
)

// Forecast is one liquidity forecast: the predicted net flow distribution
// for a target date plus the regime and model that produced it.
type Forecast struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	ForecastType   ForecastType `json:"forecast_type"`
	ForecastDate   Time         `json:"forecast_date"`
	TargetDate     Time         `json:"target_date"`
	HorizonDays    int          `json:"horizon_days"`

	PredictedNetFlowP50 Amount `json:"predicted_net_flow_p50"`
	PredictedNetFlowP5  Amount `json:"predicted_net_flow_p5"`
	PredictedNetFlowP95 Amount `json:"predicted_net_flow_p95"`
	PredictedInflowP50  Amount `json:"predicted_inflow_p50"`
	PredictedOutflowP50 Amount `json:"predicted_outflow_p50"`
	Currency            string `json:"currency"`

	Regime           Regime `json:"regime"`
	RegimeConfidence Amount `json:"regime_confidence"`
	ConfidenceScore  Amount `json:"confidence_score"`
	ModelName        string `json:"model_name"`
	ModelVersion     string `json:"model_version"`

	CreatedAt Time `json:"created_at"`
	UpdatedAt Time `json:"updated_at"`
}

// ForecastListItem is the compact list representation of a forecast.
type ForecastListItem struct {
	ID                  string `json:"id"`
	ForecastDate        Time   `json:"forecast_date"`
	TargetDate          Time   `json:"target_date"`
	PredictedNetFlowP50 Amount `json:"predicted_net_flow_p50"`
	Regime              Regime `json:"regime"`
	ConfidenceScore     Amount `json:"confidence_score"`
}

// ForecastBatch is a multi-day forecast run.
type ForecastBatch struct {
	OrganizationID        string     `json:"organization_id"`
	GeneratedAt           Time       `json:"generated_at"`
	Regime                Regime     `json:"regime"`
	Forecasts             []Forecast `json:"forecasts"`
	TotalPredictedNetFlow Amount     `json:"total_predicted_net_flow"`
	AvgConfidence         Amount     `json:"avg_confidence"`
}

// AccuracyMetrics aggregates forecast-versus-actual accuracy over a period.
type AccuracyMetrics struct {
	PeriodStart    Time `json:"period_start"`
	PeriodEnd      Time `json:"period_end"`
	TotalForecasts int  `json:"total_forecasts"`

	MAPE                Amount `json:"mape"`
	MAE                 Amount `json:"mae"`
	DirectionalAccuracy Amount `json:"directional_accuracy"`
	Within90CI          Amount `json:"within_90_ci"`

	AccuracySteadyState Amount `json:"accuracy_steady_state"`
	AccuracyElevated    Amount `json:"accuracy_elevated"`
	AccuracyCrisis      Amount `json:"accuracy_crisis"`
}

// ForecastComparison is one forecast matched against the realized flow.
type ForecastComparison struct {
	ForecastID       string `json:"forecast_id"`
	TargetDate       Time   `json:"target_date"`
	PredictedNetFlow Amount `json:"predicted_net_flow"`
	PredictedP5      Amount `json:"predicted_p5"`
	PredictedP95     Amount `json:"predicted_p95"`
	ActualNetFlow    Amount `json:"actual_net_flow"`

	Error                    Amount `json:"error"`
	AbsoluteError            Amount `json:"absolute_error"`
	WithinConfidenceInterval bool   `json:"within_confidence_interval"`
	Regime                   Regime `json:"regime"`
}

// GenerateForecastParams describes a forecast run. Zero values defer to the
// platform's defaults (daily forecast for tomorrow, five-day horizon).
type GenerateForecastParams struct {
	ForecastType      ForecastType `json:"forecast_type,omitempty"`
	TargetDate        Time         `json:"target_date"`
	HorizonDays       int          `json:"horizon_days,omitempty"`
	AccountID         string       `json:"account_id,omitempty"`
	PortfolioID       string       `json:"portfolio_id,omitempty"`
	IncludeComponents *bool        `json:"include_components,omitempty"`
	IncludeFeatures   *bool        `json:"include_features,omitempty"`
}

// ForecastListParams filters and pages the forecast history.
type ForecastListParams struct {
	ListOptions
	StartDate time.Time
	EndDate   time.Time
	Regime    Regime
}

// ForecastService groups the liquidity forecasting endpoints.
type ForecastService struct {
	c *Client
}

// Generate runs the forecasting engine for one target date.
func (s *ForecastService) Generate(ctx context.Context, p GenerateForecastParams) (*Forecast, error) {
	env, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/forecasts/generate",
		Operation: "forecasts.generate",
		Body:      p,
	})
	if err != nil {
		return nil, err
	}
	var f Forecast
	if err := env.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// GenerateBatch runs the forecasting engine for the next HorizonDays days.
func (s *ForecastService) GenerateBatch(ctx context.Context, p GenerateForecastParams) (*ForecastBatch, error) {
	env, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/forecasts/generate/batch",
		Operation: "forecasts.generate_batch",
		Body:      p,
	})
	if err != nil {
		return nil, err
	}
	var b ForecastBatch
	if err := env.Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Daily returns the daily forecast for targetDate. A zero targetDate means
// the platform default, tomorrow.
func (s *ForecastService) Daily(ctx context.Context, targetDate time.Time) (*Forecast, error) {
	q := url.Values{}
	if !targetDate.IsZero() {
		q.Set("target_date", targetDate.Format("2006-01-02"))
	}
	env, err := s.c.Do(ctx, Request{
		Path:      "/forecasts/daily",
		Operation: "forecasts.daily",
		Query:     q,
	})
	if err != nil {
		return nil, err
	}
	var f Forecast
	if err := env.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Realtime returns the intraday forecast. Requires the enterprise tier.
func (s *ForecastService) Realtime(ctx context.Context) (*Forecast, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/forecasts/realtime",
		Operation: "forecasts.realtime",
	})
	if err != nil {
		return nil, err
	}
	var f Forecast
	if err := env.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// List pages through the forecast history.
func (s *ForecastService) List(ctx context.Context, p ForecastListParams) ([]ForecastListItem, *Pagination, error) {
	q := p.Values()
	if !p.StartDate.IsZero() {
		q.Set("start_date", p.StartDate.Format("2006-01-02"))
	}
	if !p.EndDate.IsZero() {
		q.Set("end_date", p.EndDate.Format("2006-01-02"))
	}
	if p.Regime != "" {
		q.Set("regime", string(p.Regime))
	}

	env, err := s.c.Do(ctx, Request{
		Path:      "/forecasts",
		Operation: "forecasts.list",
		Query:     q,
	})
	if err != nil {
		return nil, nil, err
	}
	var items []ForecastListItem
	if err := env.Decode(&items); err != nil {
		return nil, nil, err
	}
	return items, env.Pagination, nil
}

// Get returns one forecast by ID.
func (s *ForecastService) Get(ctx context.Context, id string) (*Forecast, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/forecasts/" + url.PathEscape(id),
		Operation: "forecasts.get",
	})
	if err != nil {
		return nil, err
	}
	var f Forecast
	if err := env.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// AccuracySummary returns accuracy metrics over a date range. Zero bounds
// default to today on the platform side.
func (s *ForecastService) AccuracySummary(ctx context.Context, start, end time.Time) (*AccuracyMetrics, error) {
	q := url.Values{}
	if !start.IsZero() {
		q.Set("start_date", start.Format("2006-01-02"))
	}
	if !end.IsZero() {
		q.Set("end_date", end.Format("2006-01-02"))
	}
	env, err := s.c.Do(ctx, Request{
		Path:      "/forecasts/accuracy/summary",
		Operation: "forecasts.accuracy",
		Query:     q,
	})
	if err != nil {
		return nil, err
	}
	var m AccuracyMetrics
	if err := env.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Comparisons pages through forecast-versus-actual comparisons.
func (s *ForecastService) Comparisons(ctx context.Context, p ForecastListParams) ([]ForecastComparison, *Pagination, error) {
	q := p.Values()
	if !p.StartDate.IsZero() {
		q.Set("start_date", p.StartDate.Format("2006-01-02"))
	}
	if !p.EndDate.IsZero() {
		q.Set("end_date", p.EndDate.Format("2006-01-02"))
	}

	env, err := s.c.Do(ctx, Request{
		Path:      "/forecasts/accuracy/comparisons",
		Operation: "forecasts.comparisons",
		Query:     q,
	})
	if err != nil {
		return nil, nil, err
	}
	var items []ForecastComparison
	if err := env.Decode(&items); err != nil {
		return nil, nil, err
	}
	return items, env.Pagination, nil
}
