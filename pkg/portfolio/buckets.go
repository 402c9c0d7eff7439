package portfolio

import "math/big"

// BucketMapping assigns each lifecycle state to at most one bucket. States
// absent from the mapping contribute to no bucket; exited validators are
// intentionally unmapped so terminal balances drop out of the dashboard sums.
type BucketMapping map[LifecycleState]Bucket

// DefaultBucketMapping is the canonical four-bucket assignment. The rewards
// bucket is not state-derived: the summary builder fills it from the trailing
// reward sum.
func DefaultBucketMapping() BucketMapping {
	return BucketMapping{
		State_Deposited:         Bucket_InTransit,
		State_PendingActivation: Bucket_InTransit,
		State_Active:            Bucket_Active,
		State_Exiting:           Bucket_Exiting,
		State_Withdrawable:      Bucket_Exiting,
		State_Slashed:           Bucket_Exiting,
	}
}

// NewStateBuckets returns the closed bucket set with all sums at zero.
func NewStateBuckets() StateBuckets {
	return StateBuckets{
		Bucket_Active:    new(big.Int),
		Bucket_InTransit: new(big.Int),
		Bucket_Rewards:   new(big.Int),
		Bucket_Exiting:   new(big.Int),
	}
}

// AggregateByLifecycleState partitions validator balances into buckets using
// the given mapping (the default mapping when nil). The partition is order
// independent; zero validators produce all-zero buckets.
func AggregateByLifecycleState(validators []*Validator, mapping BucketMapping) StateBuckets {
	if mapping == nil {
		mapping = DefaultBucketMapping()
	}

	buckets := NewStateBuckets()
	for _, v := range validators {
		if v == nil || v.Balance == nil {
			continue
		}
		bucket, ok := mapping[v.StakeState]
		if !ok {
			continue
		}
		sum, ok := buckets[bucket]
		if !ok {
			continue
		}
		sum.Add(sum, v.Balance)
	}
	return buckets
}
