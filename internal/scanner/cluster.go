package scanner

import (
	"math/big"

	"liquidityDepth/internal/model"
)

// Point is an index carrying liquidity, ascending order expected.
type Point struct {
	Index     int32
	Liquidity *big.Int
}

// Cluster merges runs of points whose gaps are at most distance.
func Cluster(points []Point, distance int32) []model.LiquidityCluster {
	if len(points) == 0 {
		return nil
	}
	clusters := make([]model.LiquidityCluster, 0)
	current := newCluster(points[0])
	for _, pt := range points[1:] {
		if int64(pt.Index)-int64(current.UpperBound) <= int64(distance) {
			current.UpperBound = pt.Index
			current.TotalLiquidity.Add(current.TotalLiquidity, liquidityOf(pt))
			current.MemberCount++
			continue
		}
		clusters = append(clusters, current)
		current = newCluster(pt)
	}
	return append(clusters, current)
}

func newCluster(pt Point) model.LiquidityCluster {
	return model.LiquidityCluster{
		LowerBound:     pt.Index,
		UpperBound:     pt.Index,
		TotalLiquidity: new(big.Int).Set(liquidityOf(pt)),
		MemberCount:    1,
	}
}

func liquidityOf(pt Point) *big.Int {
	if pt.Liquidity == nil {
		return new(big.Int)
	}
	return pt.Liquidity
}
