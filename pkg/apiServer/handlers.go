package apiServer

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/clearstake/stakewatch/internal/metrics/metricsTypes"
	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/storage"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

func (s *ApiServer) writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}

func (s *ApiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJson(w, status, &ErrorResponse{Error: message})
}

func (s *ApiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ApiServer) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()

	start := time.Now()
	summary, err := s.portfolioService.GetPortfolioSummary(r.Context(), asOf)
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to build portfolio summary", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build portfolio summary")
		return
	}
	_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_SummaryBuildDuration, time.Since(start), nil)

	totalValue, _ := new(big.Float).SetInt(summary.TotalValue).Float64()
	_ = s.metricsSink.Gauge(metricsTypes.Metric_Gauge_PortfolioTotalValue, totalValue, nil)
	_ = s.metricsSink.Gauge(metricsTypes.Metric_Gauge_ValidatorCount, float64(summary.ValidatorCount), nil)

	s.writeJson(w, http.StatusOK, convertSummary(summary))
}

func (s *ApiServer) handleCustodianBreakdown(w http.ResponseWriter, r *http.Request) {
	summary, err := s.portfolioService.GetPortfolioSummary(r.Context(), time.Now().UTC())
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to build custodian breakdown", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build custodian breakdown")
		return
	}

	breakdown := make([]*CustodianAllocationResponse, 0, len(summary.CustodianBreakdown))
	for _, a := range summary.CustodianBreakdown {
		breakdown = append(breakdown, convertAllocation(a))
	}
	s.writeJson(w, http.StatusOK, breakdown)
}

func (s *ApiServer) handleStateBuckets(w http.ResponseWriter, r *http.Request) {
	summary, err := s.portfolioService.GetPortfolioSummary(r.Context(), time.Now().UTC())
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to build state buckets", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build state buckets")
		return
	}

	s.writeJson(w, http.StatusOK, convertSummary(summary).StateBuckets)
}

func (s *ApiServer) handleRecordSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.portfolioService.RecordPortfolioSnapshot(r.Context(), time.Now().UTC())
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to record portfolio snapshot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to record portfolio snapshot")
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]interface{}{
		"totalValue":     snapshot.TotalValue.String(),
		"validatorCount": snapshot.ValidatorCount,
		"asOf":           snapshot.AsOf,
	})
}

func (s *ApiServer) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	status := exceptions.Status(r.URL.Query().Get("status"))

	excs, err := s.exceptionsService.ListExceptions(r.Context(), status)
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to list exceptions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list exceptions")
		return
	}

	s.writeJson(w, http.StatusOK, convertExceptions(excs))
}

func (s *ApiServer) handleScanExceptions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	found, err := s.exceptionsService.Scan(r.Context(), time.Now().UTC())
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to scan for exceptions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to scan for exceptions")
		return
	}
	_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_DetectorRunDuration, time.Since(start), nil)

	for _, ex := range found {
		_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_ExceptionDetected, []metricsTypes.MetricsLabel{
			{Name: "type", Value: string(ex.Type)},
			{Name: "severity", Value: string(ex.Severity)},
		}, 1)
	}

	if open, err := s.exceptionsService.ListExceptions(r.Context(), exceptions.Status_New); err == nil {
		_ = s.metricsSink.Gauge(metricsTypes.Metric_Gauge_OpenExceptions, float64(len(open)), nil)
	}

	s.writeJson(w, http.StatusOK, convertExceptions(found))
}

func (s *ApiServer) handleGetException(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ex, err := s.exceptionsService.GetException(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("exception '%s' not found", id))
			return
		}
		s.Logger.Sugar().Errorw("Failed to get exception", "error", err, "id", id)
		s.writeError(w, http.StatusInternalServerError, "failed to get exception")
		return
	}

	s.writeJson(w, http.StatusOK, convertException(ex))
}

func (s *ApiServer) handleTransitionException(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		s.writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	ex, err := s.exceptionsService.Transition(
		r.Context(),
		id,
		exceptions.Status(req.Status),
		&exceptions.TransitionOptions{
			Resolution: req.Resolution,
			ResolvedBy: req.ResolvedBy,
		},
		time.Now().UTC(),
	)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("exception '%s' not found", id))
			return
		}
		if errors.Is(err, exceptions.ErrInvalidTransition) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.Logger.Sugar().Errorw("Failed to transition exception", "error", err, "id", id)
		s.writeError(w, http.StatusInternalServerError, "failed to transition exception")
		return
	}

	if ex.Status == exceptions.Status_Resolved {
		_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_ExceptionResolved, []metricsTypes.MetricsLabel{
			{Name: "type", Value: string(ex.Type)},
		}, 1)
	}

	s.writeJson(w, http.StatusOK, convertException(ex))
}

func (s *ApiServer) handleMonthlyStatement(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		// Default to the previous calendar month.
		month = time.Now().UTC().AddDate(0, -1, 0).Format("2006-01")
	}

	statement, err := s.portfolioService.GetMonthlyStatement(r.Context(), month)
	if err != nil {
		s.Logger.Sugar().Errorw("Failed to build monthly statement", "error", err, "month", month)
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to build statement for month '%s'", month))
		return
	}

	_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_StatementGenerated, nil, 1)

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%s.csv"`, month))
		if err := statement.WriteCsv(w); err != nil {
			s.Logger.Sugar().Errorw("Failed to write statement csv", "error", err)
		}
		return
	}

	s.writeJson(w, http.StatusOK, statement)
}
