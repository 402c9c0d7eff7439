package portfolio

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_AggregateByLifecycleState(t *testing.T) {
	t.Run("Test that mapped states land in their buckets", func(t *testing.T) {
		validators := []*Validator{
			{ValidatorId: "v1", StakeState: State_Active, Balance: big.NewInt(32_000_000_000)},
			{ValidatorId: "v2", StakeState: State_Active, Balance: big.NewInt(32_100_000_000)},
			{ValidatorId: "v3", StakeState: State_Deposited, Balance: big.NewInt(32_000_000_000)},
			{ValidatorId: "v4", StakeState: State_PendingActivation, Balance: big.NewInt(32_000_000_000)},
			{ValidatorId: "v5", StakeState: State_Exiting, Balance: big.NewInt(31_900_000_000)},
			{ValidatorId: "v6", StakeState: State_Withdrawable, Balance: big.NewInt(100_000_000)},
		}

		buckets := AggregateByLifecycleState(validators, nil)

		assert.Equal(t, "64100000000", buckets[Bucket_Active].String())
		assert.Equal(t, "64000000000", buckets[Bucket_InTransit].String())
		assert.Equal(t, "32000000000", buckets[Bucket_Exiting].String())
		assert.Equal(t, "0", buckets[Bucket_Rewards].String())
	})

	t.Run("Test that exited validators contribute to no bucket", func(t *testing.T) {
		validators := []*Validator{
			{ValidatorId: "v1", StakeState: State_Exited, Balance: big.NewInt(32_000_000_000)},
		}

		buckets := AggregateByLifecycleState(validators, nil)

		for bucket, sum := range buckets {
			assert.Equal(t, "0", sum.String(), "bucket %s should be empty", bucket)
		}
	})

	t.Run("Test that the bucket total equals the mapped balance total", func(t *testing.T) {
		validators := []*Validator{
			{ValidatorId: "v1", StakeState: State_Active, Balance: big.NewInt(10)},
			{ValidatorId: "v2", StakeState: State_Deposited, Balance: big.NewInt(20)},
			{ValidatorId: "v3", StakeState: State_Slashed, Balance: big.NewInt(30)},
			{ValidatorId: "v4", StakeState: State_Exiting, Balance: big.NewInt(40)},
		}

		buckets := AggregateByLifecycleState(validators, nil)

		total := new(big.Int)
		for _, sum := range buckets {
			total.Add(total, sum)
		}
		assert.Equal(t, "100", total.String())
	})

	t.Run("Test that zero validators produce all-zero buckets", func(t *testing.T) {
		buckets := AggregateByLifecycleState(nil, nil)

		assert.Len(t, buckets, 4)
		for _, sum := range buckets {
			assert.Equal(t, "0", sum.String())
		}
	})

	t.Run("Test that a custom mapping overrides the default", func(t *testing.T) {
		mapping := BucketMapping{
			State_Slashed: Bucket_Active,
		}
		validators := []*Validator{
			{ValidatorId: "v1", StakeState: State_Slashed, Balance: big.NewInt(7)},
			{ValidatorId: "v2", StakeState: State_Active, Balance: big.NewInt(9)},
		}

		buckets := AggregateByLifecycleState(validators, mapping)

		assert.Equal(t, "7", buckets[Bucket_Active].String())
		assert.Equal(t, "0", buckets[Bucket_InTransit].String())
	})

	t.Run("Test that nil validators and nil balances are skipped", func(t *testing.T) {
		validators := []*Validator{
			nil,
			{ValidatorId: "v1", StakeState: State_Active, Balance: nil},
			{ValidatorId: "v2", StakeState: State_Active, Balance: big.NewInt(5)},
		}

		buckets := AggregateByLifecycleState(validators, nil)

		assert.Equal(t, "5", buckets[Bucket_Active].String())
	})
}
