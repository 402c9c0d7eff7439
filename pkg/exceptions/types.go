package exceptions

import (
	"math/big"
	"time"

	"github.com/clearstake/stakewatch/pkg/portfolio"
	"github.com/google/uuid"
)

type ExceptionType string

const (
	ExceptionType_PortfolioValueChange  ExceptionType = "portfolio_value_change"
	ExceptionType_ValidatorCountChange  ExceptionType = "validator_count_change"
	ExceptionType_InTransitStuck        ExceptionType = "in_transit_stuck"
	ExceptionType_RewardsAnomaly        ExceptionType = "rewards_anomaly"
	ExceptionType_PerformanceDivergence ExceptionType = "performance_divergence"
)

type Severity string

const (
	Severity_Low      Severity = "low"
	Severity_Medium   Severity = "medium"
	Severity_High     Severity = "high"
	Severity_Critical Severity = "critical"
)

type Status string

const (
	Status_New           Status = "new"
	Status_Investigating Status = "investigating"
	Status_Resolved      Status = "resolved"
)

// EvidenceLink points at an entity substantiating the exception. Links are
// informational; nothing here ever dereferences them.
type EvidenceLink struct {
	Type  string `json:"type"`
	Id    string `json:"id"`
	Label string `json:"label"`
	Url   string `json:"url,omitempty"`
}

type Exception struct {
	Id            string
	Type          ExceptionType
	Status        Status
	Title         string
	Description   string
	Severity      Severity
	EvidenceLinks []EvidenceLink
	DetectedAt    time.Time
	ResolvedAt    *time.Time
	ResolvedBy    string
	Resolution    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// newException stamps a fresh exception the way every detector does: new
// status, generated id, all timestamps at the injected detection time.
func newException(t ExceptionType, severity Severity, title, description string, links []EvidenceLink, now time.Time) *Exception {
	if links == nil {
		links = []EvidenceLink{}
	}
	return &Exception{
		Id:            uuid.New().String(),
		Type:          t,
		Status:        Status_New,
		Title:         title,
		Description:   description,
		Severity:      severity,
		EvidenceLinks: links,
		DetectedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// PortfolioSnapshot is one stored observation of the portfolio used by the
// change detectors.
type PortfolioSnapshot struct {
	TotalValue     *big.Int
	ValidatorCount int
	AsOf           time.Time
}

// TransitValidator describes a validator currently in a transit-like state
// (deposited or pending activation) with the time it entered that state.
type TransitValidator struct {
	ValidatorId   string
	Pubkey        string
	StakeState    portfolio.LifecycleState
	CustodianId   string
	CustodianName string
	TransitStart  *time.Time
}

// RewardPoint is one historical reward-sum observation (one point per
// reporting period, chronological).
type RewardPoint struct {
	PeriodEnd time.Time
	Total     *big.Int
}

type CustodianPerformance struct {
	CustodianId    string
	CustodianName  string
	TrailingApy30d float64
}

// DetectionState is the full signal set one detector run inspects.
type DetectionState struct {
	Current              *PortfolioSnapshot
	Previous             *PortfolioSnapshot
	TransitValidators    []*TransitValidator
	RewardHistory        []*RewardPoint
	CustodianPerformance []*CustodianPerformance
}
