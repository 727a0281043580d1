package client

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// AssetClass classifies a position's instrument.
type AssetClass string

const (
	AssetEquity       AssetClass = "equity"
	AssetFixedIncome  AssetClass = "fixed_income"
	AssetDerivatives  AssetClass = "derivatives"
	AssetCash         AssetClass = "cash"
	AssetAlternatives AssetClass = "alternatives"
	AssetCrypto       AssetClass = "crypto"
)

// Position is one portfolio holding on a snapshot date.
type Position struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	SnapshotDate   Time       `json:"snapshot_date"`
	SecurityID     string     `json:"security_id"`
	SecurityName   string     `json:"security_name"`
	Ticker         string     `json:"ticker"`
	ISIN           string     `json:"isin"`
	CUSIP          string     `json:"cusip"`
	SEDOL          string     `json:"sedol"`
	AssetClass     AssetClass `json:"asset_class"`

	Quantity    Amount `json:"quantity"`
	Price       Amount `json:"price"`
	MarketValue Amount `json:"market_value"`
	Currency    string `json:"currency"`

	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Country  string `json:"country"`

	CostBasis       Amount `json:"cost_basis"`
	UnrealizedPnL   Amount `json:"unrealized_pnl"`
	RealizedPnL     Amount `json:"realized_pnl"`
	FXRate          Amount `json:"fx_rate"`
	MarketValueUSD  Amount `json:"market_value_usd"`
	PortfolioWeight Amount `json:"portfolio_weight"`

	Beta            Amount `json:"beta"`
	Volatility30d   Amount `json:"volatility_30d"`
	VaR95           Amount `json:"var_95"`
	AvgDailyVolume  Amount `json:"avg_daily_volume"`
	DaysToLiquidate Amount `json:"days_to_liquidate"`

	AccountID   string `json:"account_id"`
	PortfolioID string `json:"portfolio_id"`
	Strategy    string `json:"strategy"`
	Broker      string `json:"broker"`
	Source      string `json:"source"`

	CreatedAt Time `json:"created_at"`
	UpdatedAt Time `json:"updated_at"`
}

// PositionListItem is the compact list representation of a position.
type PositionListItem struct {
	ID              string `json:"id"`
	SnapshotDate    Time   `json:"snapshot_date"`
	SecurityID      string `json:"security_id"`
	SecurityName    string `json:"security_name"`
	Ticker          string `json:"ticker"`
	MarketValue     Amount `json:"market_value"`
	PortfolioWeight Amount `json:"portfolio_weight"`
}

// PortfolioSummary aggregates the portfolio on one snapshot date.
type PortfolioSummary struct {
	OrganizationID string `json:"organization_id"`
	SnapshotDate   Time   `json:"snapshot_date"`

	TotalMarketValue Amount `json:"total_market_value"`
	TotalPositions   int    `json:"total_positions"`
	TotalSecurities  int    `json:"total_securities"`

	ByAssetClass map[string]Amount `json:"by_asset_class"`
	ByCurrency   map[string]Amount `json:"by_currency"`
	BySector     map[string]Amount `json:"by_sector"`

	TopPositions []PositionListItem `json:"top_positions"`

	PortfolioBeta       Amount `json:"portfolio_beta"`
	PortfolioVolatility Amount `json:"portfolio_volatility"`
	VaR95               Amount `json:"var_95"`
}

// CreatePositionParams describes one position record to create.
type CreatePositionParams struct {
	SnapshotDate Time       `json:"snapshot_date"`
	SecurityID   string     `json:"security_id"`
	SecurityName string     `json:"security_name,omitempty"`
	Ticker       string     `json:"ticker,omitempty"`
	ISIN         string     `json:"isin,omitempty"`
	AssetClass   AssetClass `json:"asset_class,omitempty"`
	Quantity     Amount     `json:"quantity"`
	Price        Amount     `json:"price"`
	MarketValue  Amount     `json:"market_value"`
	Currency     string     `json:"currency,omitempty"`
	Sector       string     `json:"sector,omitempty"`
	Industry     string     `json:"industry,omitempty"`
	Country      string     `json:"country,omitempty"`
	CostBasis    Amount     `json:"cost_basis,omitempty"`
	AccountID    string     `json:"account_id,omitempty"`
	PortfolioID  string     `json:"portfolio_id,omitempty"`
	Broker       string     `json:"broker,omitempty"`
}

// PositionListParams filters and pages the position list.
type PositionListParams struct {
	ListOptions
	SnapshotDate time.Time
	AssetClass   AssetClass
	AccountID    string
}

// PositionService groups the portfolio position endpoints.
type PositionService struct {
	c *Client
}

// Create records a single position.
func (s *PositionService) Create(ctx context.Context, p CreatePositionParams) (*Position, error) {
	env, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/positions",
		Operation: "positions.create",
		Body:      p,
	})
	if err != nil {
		return nil, err
	}
	var pos Position
	if err := env.Decode(&pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

// List pages through positions with optional filters.
func (s *PositionService) List(ctx context.Context, p PositionListParams) ([]PositionListItem, *Pagination, error) {
	q := p.Values()
	if !p.SnapshotDate.IsZero() {
		q.Set("snapshot_date", p.SnapshotDate.Format("2006-01-02"))
	}
	if p.AssetClass != "" {
		q.Set("asset_class", string(p.AssetClass))
	}
	if p.AccountID != "" {
		q.Set("account_id", p.AccountID)
	}

	env, err := s.c.Do(ctx, Request{
		Path:      "/positions",
		Operation: "positions.list",
		Query:     q,
	})
	if err != nil {
		return nil, nil, err
	}
	var items []PositionListItem
	if err := env.Decode(&items); err != nil {
		return nil, nil, err
	}
	return items, env.Pagination, nil
}

// Summary returns the aggregated portfolio for a snapshot date. A zero
// snapshotDate means the latest available.
func (s *PositionService) Summary(ctx context.Context, snapshotDate time.Time) (*PortfolioSummary, error) {
	q := url.Values{}
	if !snapshotDate.IsZero() {
		q.Set("snapshot_date", snapshotDate.Format("2006-01-02"))
	}
	env, err := s.c.Do(ctx, Request{
		Path:      "/positions/summary",
		Operation: "positions.summary",
		Query:     q,
	})
	if err != nil {
		return nil, err
	}
	var sum PortfolioSummary
	if err := env.Decode(&sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Get returns one position by ID.
func (s *PositionService) Get(ctx context.Context, id string) (*Position, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/positions/" + url.PathEscape(id),
		Operation: "positions.get",
	})
	if err != nil {
		return nil, err
	}
	var pos Position
	if err := env.Decode(&pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

// Delete removes one position by ID.
func (s *PositionService) Delete(ctx context.Context, id string) error {
	_, err := s.c.Do(ctx, Request{
		Method:    http.MethodDelete,
		Path:      "/positions/" + url.PathEscape(id),
		Operation: "positions.delete",
	})
	return err
}

// SnapshotDates returns the dates that have position data, newest first.
func (s *PositionService) SnapshotDates(ctx context.Context) ([]Time, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/positions/dates",
		Operation: "positions.dates",
	})
	if err != nil {
		return nil, err
	}
	var dates []Time
	if err := env.Decode(&dates); err != nil {
		return nil, err
	}
	return dates, nil
}
