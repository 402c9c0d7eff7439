package apiServer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/clearstake/stakewatch/internal/metrics"
	"github.com/clearstake/stakewatch/internal/metrics/metricsTypes"
	"github.com/clearstake/stakewatch/pkg/service/exceptionsDataService"
	"github.com/clearstake/stakewatch/pkg/service/portfolioDataService"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type ApiServer struct {
	Logger            *zap.Logger
	globalConfig      *config.Config
	portfolioService  *portfolioDataService.PortfolioDataService
	exceptionsService *exceptionsDataService.ExceptionsDataService
	metricsSink       *metrics.MetricsSink
}

func NewApiServer(
	globalConfig *config.Config,
	ps *portfolioDataService.PortfolioDataService,
	es *exceptionsDataService.ExceptionsDataService,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *ApiServer {
	return &ApiServer{
		Logger:            l,
		globalConfig:      globalConfig,
		portfolioService:  ps,
		exceptionsService: es,
		metricsSink:       ms,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *ApiServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}

		labels := []metricsTypes.MetricsLabel{
			{Name: "route", Value: route},
			{Name: "statusCode", Value: strconv.Itoa(recorder.status)},
		}
		_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), []metricsTypes.MetricsLabel{
			{Name: "route", Value: route},
		})

		s.Logger.Sugar().Debugw("Handled request",
			"method", r.Method,
			"route", route,
			"status", recorder.status,
			"duration", time.Since(start),
		)
	})
}

func (s *ApiServer) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.instrument)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleHealth).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/portfolio/summary", s.handlePortfolioSummary).Methods(http.MethodGet)
	v1.HandleFunc("/portfolio/custodians", s.handleCustodianBreakdown).Methods(http.MethodGet)
	v1.HandleFunc("/portfolio/buckets", s.handleStateBuckets).Methods(http.MethodGet)
	v1.HandleFunc("/portfolio/snapshot", s.handleRecordSnapshot).Methods(http.MethodPost)
	v1.HandleFunc("/exceptions", s.handleListExceptions).Methods(http.MethodGet)
	v1.HandleFunc("/exceptions/scan", s.handleScanExceptions).Methods(http.MethodPost)
	v1.HandleFunc("/exceptions/{id}", s.handleGetException).Methods(http.MethodGet)
	v1.HandleFunc("/exceptions/{id}/transition", s.handleTransitionException).Methods(http.MethodPost)
	v1.HandleFunc("/reports/statement", s.handleMonthlyStatement).Methods(http.MethodGet)

	return router
}

func (s *ApiServer) Start(ctx context.Context, gracefulShutdown chan bool) error {
	handler := cors.AllowAll().Handler(s.Router())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.globalConfig.RpcConfig.HttpPort),
		Handler: handler,
	}

	go func() {
		for range gracefulShutdown {
			s.Logger.Sugar().Info("Shutting down http server")
			if err := httpServer.Shutdown(ctx); err != nil {
				s.Logger.Sugar().Errorw("Failed to shutdown http server", zap.Error(err))
			}
		}
	}()
	go func() {
		s.Logger.Sugar().Infow("Starting http server", zap.Int("port", s.globalConfig.RpcConfig.HttpPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Sugar().Fatal("Failed to start http server", zap.Error(err))
		}
	}()
	return nil
}
