package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller performs a single eth_call.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PackCall builds the call message for method on contract to.
func PackCall(parsed abi.ABI, to common.Address, method string, args ...interface{}) (ethereum.CallMsg, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return ethereum.CallMsg{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return ethereum.CallMsg{To: &to, Data: data}, nil
}

// Unpack decodes the return data of method.
func Unpack(parsed abi.ABI, method string, data []byte) ([]interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("unpack %s: empty return data", method)
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// Call packs, executes, and unpacks method at the latest block.
func Call(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	msg, err := PackCall(parsed, to, method, args...)
	if err != nil {
		return nil, err
	}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return Unpack(parsed, method, resp)
}
