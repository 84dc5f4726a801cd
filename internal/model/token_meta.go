package model

const (
	DefaultTokenDecimals = 18
	UnknownTokenSymbol   = "UNKNOWN"
)

// TokenMeta captures token metadata needed for amount scaling.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
}

// DefaultTokenMeta is used when metadata cannot be resolved.
func DefaultTokenMeta(address string) TokenMeta {
	return TokenMeta{Address: address, Decimals: DefaultTokenDecimals, Symbol: UnknownTokenSymbol}
}
