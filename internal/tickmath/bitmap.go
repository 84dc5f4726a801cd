package tickmath

import "math/big"

// Compress divides tick by spacing rounding toward negative infinity.
func Compress(tick, spacing int32) int32 {
	if spacing <= 0 {
		spacing = 1
	}
	compressed := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		compressed--
	}
	return compressed
}

// BitmapPosition returns the tickBitmap word and bit holding a compressed tick.
func BitmapPosition(compressed int32) (int16, uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

// BitmapWords lists every bitmap word covering ticks in [lower, upper].
func BitmapWords(lower, upper, spacing int32) []int16 {
	if upper < lower {
		return nil
	}
	first, _ := BitmapPosition(Compress(lower, spacing))
	last, _ := BitmapPosition(Compress(upper, spacing))
	words := make([]int16, 0, int(last)-int(first)+1)
	for w := int(first); w <= int(last); w++ {
		words = append(words, int16(w))
	}
	return words
}

// InitializedTicks decodes one bitmap word into the sorted ticks it flags.
func InitializedTicks(word *big.Int, wordPos int16, spacing int32) []int32 {
	if word == nil || word.Sign() == 0 {
		return nil
	}
	ticks := make([]int32, 0)
	for bit := 0; bit < 256; bit++ {
		if word.Bit(bit) == 0 {
			continue
		}
		compressed := int32(wordPos)<<8 | int32(bit)
		ticks = append(ticks, compressed*spacing)
	}
	return ticks
}
