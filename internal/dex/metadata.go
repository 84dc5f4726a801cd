package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityDepth/internal/model"
)

// FetchTokenMeta loads ERC20 decimals, symbol, and name. When decimals cannot
// be read the returned meta carries the defaults alongside the error.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.DefaultTokenMeta(token.Hex())
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20StringABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := Call(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := AsUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if symbol, ok := readStringField(ctx, caller, token, "symbol", stringABI, bytes32ABI, logger); ok {
		meta.Symbol = symbol
	}
	if name, ok := readStringField(ctx, caller, token, "name", stringABI, bytes32ABI, logger); ok {
		meta.Name = name
	}
	return meta, nil
}

// readStringField tries the string ABI first, then the bytes32 variant some
// older tokens return.
func readStringField(ctx context.Context, caller ContractCaller, token common.Address, method string, stringABI, bytes32ABI abi.ABI, logger *zap.Logger) (string, bool) {
	if values, err := Call(ctx, caller, token, stringABI, method); err == nil {
		if s, ok := values[0].(string); ok && s != "" {
			return s, true
		}
	}
	values, err := Call(ctx, caller, token, bytes32ABI, method)
	if err != nil {
		logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
		return "", false
	}
	s, ok := bytes32ToString(values[0])
	return s, ok && s != ""
}
