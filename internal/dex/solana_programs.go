package dex

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

var (
	RaydiumAMMProgramID   = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	RaydiumCLMMProgramID  = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
	WhirlpoolProgramID    = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	MeteoraDLMMProgramID  = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")
	PumpBondingProgramID  = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	WrappedSolMint        = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	splTokenProgramID     = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	splToken2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

const (
	RaydiumTickArraySize   = 60
	WhirlpoolTickArraySize = 88
	DLMMBinsPerArray       = 70

	PumpTokenDecimals = 6
	SolDecimals       = 9
)

var (
	tickArraySeed = []byte("tick_array")
	binArraySeed  = []byte("bin_array")
)

// IsTokenProgram reports whether owner is the SPL token or token-2022 program.
func IsTokenProgram(owner solana.PublicKey) bool {
	return owner.Equals(splTokenProgramID) || owner.Equals(splToken2022ProgramID)
}

// TickArrayStart returns the start index of the tick array holding tick.
func TickArrayStart(tick, spacing int32, size int32) int32 {
	span := spacing * size
	start := tick / span
	if tick < 0 && tick%span != 0 {
		start--
	}
	return start * span
}

// TickArrayStarts lists the start indices of all tick arrays covering [lower, upper].
func TickArrayStarts(lower, upper, spacing, size int32) []int32 {
	if upper < lower || spacing <= 0 || size <= 0 {
		return nil
	}
	span := spacing * size
	starts := make([]int32, 0)
	for start := TickArrayStart(lower, spacing, size); start <= upper; start += span {
		starts = append(starts, start)
	}
	return starts
}

// RaydiumTickArrayAddress derives the CLMM tick array PDA (start index big endian).
func RaydiumTickArrayAddress(pool solana.PublicKey, start int32) (solana.PublicKey, error) {
	seed := make([]byte, 4)
	binary.BigEndian.PutUint32(seed, uint32(start))
	address, _, err := solana.FindProgramAddress([][]byte{tickArraySeed, pool.Bytes(), seed}, RaydiumCLMMProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("raydium tick array %d: %w", start, err)
	}
	return address, nil
}

// WhirlpoolTickArrayAddress derives the Whirlpool tick array PDA (start index as decimal text).
func WhirlpoolTickArrayAddress(pool solana.PublicKey, start int32) (solana.PublicKey, error) {
	seed := []byte(strconv.FormatInt(int64(start), 10))
	address, _, err := solana.FindProgramAddress([][]byte{tickArraySeed, pool.Bytes(), seed}, WhirlpoolProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("whirlpool tick array %d: %w", start, err)
	}
	return address, nil
}

// BinArrayIndex returns the DLMM bin array index holding binID.
func BinArrayIndex(binID int32) int64 {
	idx := int64(binID) / DLMMBinsPerArray
	if binID < 0 && int64(binID)%DLMMBinsPerArray != 0 {
		idx--
	}
	return idx
}

// DLMMBinArrayAddress derives the DLMM bin array PDA (index little endian).
func DLMMBinArrayAddress(lbPair solana.PublicKey, index int64) (solana.PublicKey, error) {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, uint64(index))
	address, _, err := solana.FindProgramAddress([][]byte{binArraySeed, lbPair.Bytes(), seed}, MeteoraDLMMProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("dlmm bin array %d: %w", index, err)
	}
	return address, nil
}
