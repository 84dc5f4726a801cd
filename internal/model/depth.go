package model

// Side is the order-book side of a depth level.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// DepthLevel is one normalized price level.
type DepthLevel struct {
	Price        float64 `json:"price"`
	LiquidityUSD float64 `json:"liquidityUSD"`
	Token0Amount float64 `json:"token0Amount"`
	Token1Amount float64 `json:"token1Amount"`
	Side         Side    `json:"-"`
}

// DepthResult is the response of a depth computation.
type DepthResult struct {
	Bids         []DepthLevel `json:"bids"`
	Asks         []DepthLevel `json:"asks"`
	CurrentPrice float64      `json:"currentPrice"`
	PoolType     PoolType     `json:"poolType"`

	Token0 TokenMeta `json:"-"`
	Token1 TokenMeta `json:"-"`
	// Cumulative levels carry the total depth from the current price to the
	// level; otherwise each level is the depth of its own sub-range.
	Cumulative bool `json:"-"`
	Partial    bool `json:"-"`
	Clamped    int  `json:"-"`
	Dropped    int  `json:"-"`
}

// EmptyDepth returns a result with no levels.
func EmptyDepth(poolType PoolType) DepthResult {
	return DepthResult{Bids: []DepthLevel{}, Asks: []DepthLevel{}, PoolType: poolType}
}
