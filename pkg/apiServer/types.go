package apiServer

import (
	"time"

	"github.com/clearstake/stakewatch/pkg/exceptions"
	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/clearstake/stakewatch/pkg/types/numbers"
)

// Wire shapes. Balances are decimal strings end to end; converting them to
// JSON numbers would silently lose precision past 2^53.

type CustodianAllocationResponse struct {
	CustodianId    string   `json:"custodianId"`
	CustodianName  string   `json:"custodianName"`
	Value          string   `json:"value"`
	Percentage     float64  `json:"percentage"`
	TrailingApy30d float64  `json:"trailingApy30d"`
	ValidatorCount int      `json:"validatorCount"`
	Change7d       *float64 `json:"change7d,omitempty"`
	Change30d      *float64 `json:"change30d,omitempty"`
}

type PortfolioSummaryResponse struct {
	TotalValue          string                         `json:"totalValue"`
	TrailingApy30d      float64                        `json:"trailingApy30d"`
	PreviousMonthApy    float64                        `json:"previousMonthApy"`
	NetworkBenchmarkApy float64                        `json:"networkBenchmarkApy"`
	ValidatorCount      int                            `json:"validatorCount"`
	StateBuckets        map[string]string              `json:"stateBuckets"`
	CustodianBreakdown  []*CustodianAllocationResponse `json:"custodianBreakdown"`
	AsOf                time.Time                      `json:"asOf"`
}

type ExceptionResponse struct {
	Id            string                    `json:"id"`
	Type          string                    `json:"type"`
	Status        string                    `json:"status"`
	Title         string                    `json:"title"`
	Description   string                    `json:"description"`
	Severity      string                    `json:"severity"`
	EvidenceLinks []exceptions.EvidenceLink `json:"evidenceLinks"`
	DetectedAt    time.Time                 `json:"detectedAt"`
	ResolvedAt    *time.Time                `json:"resolvedAt,omitempty"`
	ResolvedBy    string                    `json:"resolvedBy,omitempty"`
	Resolution    string                    `json:"resolution,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	UpdatedAt     time.Time                 `json:"updatedAt"`
}

type TransitionRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
	ResolvedBy string `json:"resolvedBy,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func convertAllocation(a *portfolio.CustodianAllocation) *CustodianAllocationResponse {
	return &CustodianAllocationResponse{
		CustodianId:    a.CustodianId,
		CustodianName:  a.CustodianName,
		Value:          numbers.BigToString(a.Value),
		Percentage:     a.Percentage,
		TrailingApy30d: a.TrailingApy30d,
		ValidatorCount: a.ValidatorCount,
		Change7d:       a.Change7d,
		Change30d:      a.Change30d,
	}
}

func convertSummary(s *portfolio.PortfolioSummary) *PortfolioSummaryResponse {
	buckets := make(map[string]string, len(s.StateBuckets))
	for bucket, value := range s.StateBuckets {
		buckets[string(bucket)] = numbers.BigToString(value)
	}

	breakdown := make([]*CustodianAllocationResponse, 0, len(s.CustodianBreakdown))
	for _, a := range s.CustodianBreakdown {
		breakdown = append(breakdown, convertAllocation(a))
	}

	return &PortfolioSummaryResponse{
		TotalValue:          numbers.BigToString(s.TotalValue),
		TrailingApy30d:      s.TrailingApy30d,
		PreviousMonthApy:    s.PreviousMonthApy,
		NetworkBenchmarkApy: s.NetworkBenchmarkApy,
		ValidatorCount:      s.ValidatorCount,
		StateBuckets:        buckets,
		CustodianBreakdown:  breakdown,
		AsOf:                s.AsOf,
	}
}

func convertException(ex *exceptions.Exception) *ExceptionResponse {
	return &ExceptionResponse{
		Id:            ex.Id,
		Type:          string(ex.Type),
		Status:        string(ex.Status),
		Title:         ex.Title,
		Description:   ex.Description,
		Severity:      string(ex.Severity),
		EvidenceLinks: ex.EvidenceLinks,
		DetectedAt:    ex.DetectedAt,
		ResolvedAt:    ex.ResolvedAt,
		ResolvedBy:    ex.ResolvedBy,
		Resolution:    ex.Resolution,
		CreatedAt:     ex.CreatedAt,
		UpdatedAt:     ex.UpdatedAt,
	}
}

func convertExceptions(excs []*exceptions.Exception) []*ExceptionResponse {
	responses := make([]*ExceptionResponse, 0, len(excs))
	for _, ex := range excs {
		responses = append(responses, convertException(ex))
	}
	return responses
}
