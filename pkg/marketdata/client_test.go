package marketdata

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8000/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != "http://localhost:8000" {
		t.Errorf("expected trimmed baseURL, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
	if c.limiter != nil {
		t.Error("expected no limiter by default")
	}

	c = NewClient("", WithTimeout(5*time.Second), WithRateLimit(10, 2))
	if c.baseURL != DefaultBaseURL {
		t.Errorf("expected default baseURL, got %q", c.baseURL)
	}
	if c.httpClient.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", c.httpClient.Timeout)
	}
	if c.limiter == nil || c.limiter.Burst() != 2 {
		t.Error("expected limiter with burst 2")
	}
}

func TestSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("query")
		w.Write([]byte(`[{"symbol":"AAPL","name":"Apple Inc."},{"symbol":"AAPU","name":"Direxion AAPL Bull"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Search(context.Background(), "AAP")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "AAP" {
		t.Errorf("query = %q, want %q", gotQuery, "AAP")
	}
	if len(res) != 2 || res[0].Symbol != "AAPL" || res[0].Name != "Apple Inc." {
		t.Errorf("unexpected results %+v", res)
	}
}

func TestSearchShortQueryNoCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	for _, q := range []string{"", "A", " a ", "é"} {
		_, err := c.Search(context.Background(), q)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Search(%q): expected ValidationError, got %v", q, err)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/data/MSFT" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if p := r.URL.Query().Get("period"); p != "1mo" {
			t.Errorf("period = %q, want 1mo", p)
		}
		// Out of order on purpose; naive and date-only timestamps.
		w.Write([]byte(`[
			{"date":"2024-03-02T00:00:00","open":2,"high":3,"low":1,"close":2.5,"volume":200,"RSI":55.5,"SMA_20":2.1,"SMA_50":null},
			{"date":"2024-03-01","open":1,"high":2,"low":0.5,"close":1.5,"volume":100.0}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	pts, err := c.History(context.Background(), " msft ", PeriodMonth)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("expected 2 points, got %d", len(pts))
	}
	if !pts[0].Time.Before(pts[1].Time) {
		t.Error("expected ascending order")
	}
	if pts[0].Close != 1.5 || pts[0].Volume != 100 {
		t.Errorf("unexpected first point %+v", pts[0])
	}
	if pts[0].Indicators.RSI != nil {
		t.Error("expected nil RSI on first point")
	}
	last := pts[1]
	if last.Indicators.RSI == nil || *last.Indicators.RSI != 55.5 {
		t.Errorf("unexpected RSI %v", last.Indicators.RSI)
	}
	if last.Indicators.SMA20 == nil || *last.Indicators.SMA20 != 2.1 {
		t.Errorf("unexpected SMA20 %v", last.Indicators.SMA20)
	}
	if last.Indicators.SMA50 != nil {
		t.Error("expected nil SMA50 for null")
	}
}

func TestHistoryNotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Data not found"}`))
	}))
	defer srv.Close()

	pts, err := NewClient(srv.URL).History(context.Background(), "ZZZZ", PeriodYear)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if pts == nil || len(pts) != 0 {
		t.Errorf("expected empty non-nil series, got %v", pts)
	}
}

func TestHistoryInvalidPeriod(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").History(context.Background(), "AAPL", Period("2y"))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "period" {
		t.Errorf("expected period ValidationError, got %v", err)
	}
}

func TestBacktest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "AAPL" || q.Get("initial_capital") != "10000" {
			t.Errorf("unexpected query %v", q)
		}
		w.Write([]byte(`{"initial_capital":10000,"final_value":12500,"total_return":0.25,
			"annualized_return":0.12,"sharpe_ratio":1.2,"max_drawdown":-0.1,
			"equity_curve":{"2024-01-02":1.0,"2024-01-03":1.01}}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Backtest(context.Background(), "aapl", 10000)
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if res.TotalReturn != 0.25 || res.SharpeRatio != 1.2 || res.MaxDrawdown != -0.1 || res.FinalValue != 12500 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.EquityCurve) != 2 {
		t.Errorf("expected 2 equity curve entries, got %d", len(res.EquityCurve))
	}
}

func TestBacktestServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Not enough data for backtest"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Backtest(context.Background(), "NEW", 10000)
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if se.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", se.StatusCode)
	}
	if se.Detail != "Not enough data for backtest" {
		t.Errorf("detail = %q", se.Detail)
	}
}

func TestBacktestInvalidCapital(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	for _, v := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := c.Backtest(context.Background(), "AAPL", v)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Backtest(%v): expected ValidationError, got %v", v, err)
		}
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Search(context.Background(), "AAPL")
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.Op != "search" {
		t.Errorf("op = %q, want search", ne.Op)
	}
}

func TestDecodeErrorIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Search(context.Background(), "AAPL")
	var se *ServiceError
	if !errors.As(err, &se) || se.Err == nil {
		t.Fatalf("expected ServiceError wrapping decode error, got %v", err)
	}
}

func TestWaitReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).WaitReady(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 pings, got %d", n)
	}
}

func TestParseCapital(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"10000", 10000, false},
		{" 10,000 ", 10000, false},
		{"$2500.50", 2500.5, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-100", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCapital(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCapital(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCapital(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
	}{
		{"1d", PeriodIntraday},
		{"1W", PeriodWeek},
		{"1mo", PeriodMonth},
		{"1M", PeriodMonth},
		{"1y", PeriodYear},
		{"ALL", PeriodMax},
		{"max", PeriodMax},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParsePeriod("2y"); err == nil {
		t.Error("expected error for 2y")
	}
	if PeriodMax.Label() != "ALL" || PeriodWeek.Label() != "1W" {
		t.Error("unexpected labels")
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{
		"2024-03-01T15:30:00",
		"2024-03-01T15:30:00.123456",
		"2024-03-01T15:30:00Z",
		"2024-03-01T15:30:00-04:00",
		"2024-03-01",
	} {
		if _, err := ParseDate(s); err != nil {
			t.Errorf("ParseDate(%q): %v", s, err)
		}
	}
	if _, err := ParseDate("03/01/2024"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}
