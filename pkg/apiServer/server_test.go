package apiServer

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/internal/metrics"
	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/service/exceptionsDataService"
	"github.com/clearstake/stakewatch/pkg/service/portfolioDataService"
	"github.com/clearstake/stakewatch/pkg/storage"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeStore struct {
	validators []*portfolio.Validator
	events     []*portfolio.RewardEvent
	snapshots  []*exceptions.PortfolioSnapshot
	excs       map[string]*exceptions.Exception
}

func (f *fakeStore) ListValidators(ctx context.Context) ([]*portfolio.Validator, error) {
	return f.validators, nil
}

func (f *fakeStore) ListRewardEvents(ctx context.Context, windowStart, windowEnd time.Time) ([]*portfolio.RewardEvent, error) {
	return f.events, nil
}

func (f *fakeStore) ListTransitValidators(ctx context.Context) ([]*exceptions.TransitValidator, error) {
	return nil, nil
}

func (f *fakeStore) ListDailyRewardPoints(ctx context.Context, days int, asOf time.Time) ([]*exceptions.RewardPoint, error) {
	return nil, nil
}

func (f *fakeStore) InsertPortfolioSnapshot(ctx context.Context, snapshot *exceptions.PortfolioSnapshot) error {
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeStore) GetLatestPortfolioSnapshots(ctx context.Context, limit int) ([]*exceptions.PortfolioSnapshot, error) {
	return f.snapshots, nil
}

func (f *fakeStore) GetPortfolioSnapshotAtOrBefore(ctx context.Context, asOf time.Time) (*exceptions.PortfolioSnapshot, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeStore) InsertExceptions(ctx context.Context, excs []*exceptions.Exception) error {
	for _, ex := range excs {
		f.excs[ex.Id] = ex
	}
	return nil
}

func (f *fakeStore) ListExceptions(ctx context.Context, status exceptions.Status) ([]*exceptions.Exception, error) {
	matched := make([]*exceptions.Exception, 0)
	for _, ex := range f.excs {
		if status == "" || ex.Status == status {
			matched = append(matched, ex)
		}
	}
	return matched, nil
}

func (f *fakeStore) GetException(ctx context.Context, id string) (*exceptions.Exception, error) {
	ex, ok := f.excs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ex, nil
}

func (f *fakeStore) UpdateException(ctx context.Context, ex *exceptions.Exception) error {
	f.excs[ex.Id] = ex
	return nil
}

func newTestServer(store *fakeStore) *ApiServer {
	l := zap.NewNop()
	cfg := &config.Config{
		PortfolioConfig: config.PortfolioConfig{NetworkBenchmarkApy: 0.032},
	}
	sink, _ := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, nil)

	ps := portfolioDataService.NewPortfolioDataService(store, l, cfg)
	es := exceptionsDataService.NewExceptionsDataService(store, l, cfg)

	return NewApiServer(cfg, ps, es, sink, l)
}

func doRequest(router *mux.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func Test_ApiServer(t *testing.T) {
	store := &fakeStore{
		validators: []*portfolio.Validator{
			{ValidatorId: "v1", CustodianId: "cust-a", CustodianName: "Custodian A", StakeState: portfolio.State_Active, Balance: big.NewInt(32_000_000_000)},
			{ValidatorId: "v2", CustodianId: "cust-a", CustodianName: "Custodian A", StakeState: portfolio.State_Active, Balance: big.NewInt(32_100_000_000)},
		},
		excs: make(map[string]*exceptions.Exception),
	}
	server := newTestServer(store)
	router := server.Router()

	t.Run("Test that healthz responds ok", func(t *testing.T) {
		res := doRequest(router, http.MethodGet, "/healthz", nil)

		assert.Equal(t, http.StatusOK, res.Code)
	})

	t.Run("Test that the portfolio summary serves decimal-string balances", func(t *testing.T) {
		res := doRequest(router, http.MethodGet, "/v1/portfolio/summary", nil)

		assert.Equal(t, http.StatusOK, res.Code)

		var summary PortfolioSummaryResponse
		assert.Nil(t, json.Unmarshal(res.Body.Bytes(), &summary))
		assert.Equal(t, "64100000000", summary.TotalValue)
		assert.Equal(t, 2, summary.ValidatorCount)
		assert.Equal(t, "64100000000", summary.StateBuckets["active"])
		assert.Equal(t, 0.032, summary.NetworkBenchmarkApy)
	})

	t.Run("Test that the custodian breakdown is served", func(t *testing.T) {
		res := doRequest(router, http.MethodGet, "/v1/portfolio/custodians", nil)

		assert.Equal(t, http.StatusOK, res.Code)

		var breakdown []*CustodianAllocationResponse
		assert.Nil(t, json.Unmarshal(res.Body.Bytes(), &breakdown))
		assert.Len(t, breakdown, 1)
		assert.Equal(t, "cust-a", breakdown[0].CustodianId)
	})

	t.Run("Test that recording a snapshot responds created", func(t *testing.T) {
		res := doRequest(router, http.MethodPost, "/v1/portfolio/snapshot", nil)

		assert.Equal(t, http.StatusCreated, res.Code)
		assert.Len(t, store.snapshots, 1)
	})

	t.Run("Test that an unknown exception id is a 404", func(t *testing.T) {
		res := doRequest(router, http.MethodGet, "/v1/exceptions/missing", nil)

		assert.Equal(t, http.StatusNotFound, res.Code)
	})

	t.Run("Test that exception transitions flow over the api", func(t *testing.T) {
		now := time.Now().UTC()
		ex := &exceptions.Exception{
			Id:         "ex-1",
			Type:       exceptions.ExceptionType_PortfolioValueChange,
			Status:     exceptions.Status_New,
			Title:      "Portfolio value increased by 6.0%",
			Severity:   exceptions.Severity_Medium,
			DetectedAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		store.excs[ex.Id] = ex

		body := []byte(`{"status": "resolved", "resolution": "Expected inflow", "resolvedBy": "ops@clearstake.io"}`)
		res := doRequest(router, http.MethodPost, "/v1/exceptions/ex-1/transition", body)

		assert.Equal(t, http.StatusOK, res.Code)

		var resolved ExceptionResponse
		assert.Nil(t, json.Unmarshal(res.Body.Bytes(), &resolved))
		assert.Equal(t, "resolved", resolved.Status)
		assert.Equal(t, "Expected inflow", resolved.Resolution)
		assert.NotNil(t, resolved.ResolvedAt)
	})

	t.Run("Test that an invalid transition is a 400", func(t *testing.T) {
		body := []byte(`{"status": "investigating"}`)
		res := doRequest(router, http.MethodPost, "/v1/exceptions/ex-1/transition", body)

		assert.Equal(t, http.StatusBadRequest, res.Code)

		var errRes ErrorResponse
		assert.Nil(t, json.Unmarshal(res.Body.Bytes(), &errRes))
		assert.Contains(t, errRes.Error, "invalid exception status transition")
	})

	t.Run("Test that a missing status in the transition body is a 400", func(t *testing.T) {
		res := doRequest(router, http.MethodPost, "/v1/exceptions/ex-1/transition", []byte(`{}`))

		assert.Equal(t, http.StatusBadRequest, res.Code)
	})

	t.Run("Test that the statement endpoint serves csv when asked", func(t *testing.T) {
		res := doRequest(router, http.MethodGet, "/v1/reports/statement?month=2026-07&format=csv", nil)

		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "text/csv", res.Header().Get("Content-Type"))
		assert.Contains(t, res.Body.String(), "custodian_id")
		assert.Contains(t, res.Body.String(), "cust-a")
	})

	t.Run("Test that a malformed statement month is a 400", func(t *testing.T) {
		res := doRequest(router, http.MethodGet, "/v1/reports/statement?month=julio", nil)

		assert.Equal(t, http.StatusBadRequest, res.Code)
	})
}
