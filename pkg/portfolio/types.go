package portfolio

import (
	"math/big"
	"time"
)

// LifecycleState is a validator's position in the stake lifecycle.
type LifecycleState string

const (
	State_Deposited         LifecycleState = "deposited"
	State_PendingActivation LifecycleState = "pending_activation"
	State_Active            LifecycleState = "active"
	State_Exiting           LifecycleState = "exiting"
	State_Withdrawable      LifecycleState = "withdrawable"
	State_Exited            LifecycleState = "exited"
	State_Slashed           LifecycleState = "slashed"
)

// Bucket names a balance aggregate on the dashboard.
type Bucket string

const (
	Bucket_Active    Bucket = "active"
	Bucket_InTransit Bucket = "inTransit"
	Bucket_Rewards   Bucket = "rewards"
	Bucket_Exiting   Bucket = "exiting"
)

// Validator is one validator with its custodian/operator join context already
// resolved by the query layer. Balances are denominated in the caller's fixed
// base unit (gwei for Ethereum validators); the portfolio package never
// converts units.
type Validator struct {
	ValidatorId      string
	Pubkey           string
	OperatorId       string
	OperatorName     string
	CustodianId      string
	CustodianName    string
	Status           string
	StakeState       LifecycleState
	Balance          *big.Int
	EffectiveBalance *big.Int
}

// RewardEvent is a single discrete reward credited to a validator.
type RewardEvent struct {
	ValidatorId string
	Amount      *big.Int
	Timestamp   time.Time
}

// StateBuckets maps each bucket to its summed balance.
type StateBuckets map[Bucket]*big.Int

type CustodianAllocation struct {
	CustodianId    string
	CustodianName  string
	Value          *big.Int
	Percentage     float64
	TrailingApy30d float64
	ValidatorCount int
	// Change7d/Change30d are filled from stored portfolio snapshots by the
	// data service when history is available.
	Change7d  *float64
	Change30d *float64
}

type PortfolioRollup struct {
	TotalValue     *big.Int
	TrailingApy30d float64
	ValidatorCount int
}

type PortfolioSummary struct {
	TotalValue          *big.Int
	TrailingApy30d      float64
	PreviousMonthApy    float64
	NetworkBenchmarkApy float64
	ValidatorCount      int
	StateBuckets        StateBuckets
	CustodianBreakdown  []*CustodianAllocation
	AsOf                time.Time
}
