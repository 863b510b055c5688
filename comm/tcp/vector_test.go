package tcp

import (
	"context"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/distvec"
)

func TestDistributedVectorOverTCP(t *testing.T) {
	comms := startCluster(t, 3, WithCompression(CompressionLZ4), WithCompressionThreshold(16))
	ctx := context.Background()
	sizes := []int{3, 4, 5}

	var gathered []float64
	errs := runAll(comms, func(c *Comm) error {
		v, err := distvec.NewPartitioned[float64](ctx, c, 12, sizes[c.Rank()])
		if err != nil {
			return err
		}
		for i := v.FirstLocalIndex(); i < v.LastLocalIndex(); i++ {
			v.Set(i, float64(i))
		}
		v.Close()

		sum, err := v.Sum(ctx)
		if err != nil {
			return err
		}
		if sum != 66 {
			return fmt.Errorf("sum = %v", sum)
		}

		// Σ i² for i < 12.
		l2, err := v.L2Norm(ctx)
		if err != nil {
			return err
		}
		if math.Abs(l2-math.Sqrt(506)) > 1e-12 {
			return fmt.Errorf("l2 = %v", l2)
		}

		picked, err := v.LocalizeIndices(ctx, []int{11, 0, 5})
		if err != nil {
			return err
		}
		if !slices.Equal(picked, []float64{11, 0, 5}) {
			return fmt.Errorf("picked = %v", picked)
		}

		all, err := v.LocalizeToOne(ctx, 0)
		if err != nil {
			return err
		}
		if c.Rank() == 0 {
			gathered = all
		} else if all != nil {
			return fmt.Errorf("rank %d received %v", c.Rank(), all)
		}
		return nil
	})
	for r, err := range errs {
		assert.NoError(t, err, "rank %d", r)
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, gathered)
}
