package pricing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RBACSVURL is the Reserve Bank of Australia F11 daily exchange rate table.
const RBACSVURL = "https://www.rba.gov.au/statistics/tables/csv/f11-data.csv"

// maxFXLookback bounds how far back the nearest-prior-day search walks,
// covering weekends and public holidays.
const maxFXLookback = 10

// RBAFXSource resolves AUD/USD rates from the RBA F11 daily series. The CSV
// is fetched once and memoized for the life of the source.
type RBAFXSource struct {
	url    string
	client *http.Client

	mu    sync.Mutex
	rates map[string]decimal.Decimal // "2006-01-02" -> units of USD per AUD
}

// RBAOption configures RBAFXSource.
type RBAOption func(*RBAFXSource)

// WithRBAURL overrides the CSV source URL.
func WithRBAURL(u string) RBAOption {
	return func(s *RBAFXSource) {
		s.url = u
	}
}

// WithRBAHTTPClient sets a custom http.Client.
func WithRBAHTTPClient(client *http.Client) RBAOption {
	return func(s *RBAFXSource) {
		s.client = client
	}
}

// NewRBAFXSource creates an RBA exchange rate source.
func NewRBAFXSource(opts ...RBAOption) *RBAFXSource {
	s := &RBAFXSource{
		url:    RBACSVURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AUDUSD returns the AUD/USD rate (USD per 1 AUD) on date, falling back to
// the nearest prior published day. Returns ErrUnavailable when no rate is
// published within the lookback window.
func (s *RBAFXSource) AUDUSD(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	rates, err := s.table(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	day := date.UTC()
	for i := 0; i < maxFXLookback; i++ {
		if rate, ok := rates[day.Format("2006-01-02")]; ok {
			return rate, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return decimal.Zero, ErrUnavailable
}

func (s *RBAFXSource) table(ctx context.Context) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rates != nil {
		return s.rates, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rba request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rba csv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rba csv status %d", resp.StatusCode)
	}

	rates, err := parseRBACSV(resp.Body)
	if err != nil {
		return nil, err
	}
	s.rates = rates
	return rates, nil
}

// parseRBACSV extracts the AUD/USD column from the F11 table. The file has
// several metadata rows before the data; the column is located by its title
// row and rows are keyed by the date in the first column.
func parseRBACSV(r io.Reader) (map[string]decimal.Decimal, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rates := make(map[string]decimal.Decimal)
	col := -1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse rba csv: %w", err)
		}
		if len(record) < 2 {
			continue
		}

		if col < 0 {
			for i, field := range record {
				if strings.Contains(strings.ToLower(field), "aud/usd") {
					col = i
					break
				}
			}
			continue
		}
		if col >= len(record) {
			continue
		}

		day, ok := parseRBADate(strings.TrimSpace(record[0]))
		if !ok {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(record[col]))
		if err != nil {
			continue
		}
		rates[day] = rate
	}
	if col < 0 {
		return nil, fmt.Errorf("rba csv: AUD/USD series not found")
	}
	return rates, nil
}

func parseRBADate(field string) (string, bool) {
	for _, layout := range []string{"02-Jan-2006", "2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, field); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
