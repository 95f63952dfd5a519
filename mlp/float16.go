package mlp

import "github.com/x448/float16"

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	// when decoding checkpoint weights
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// f16ToF32 converts one fp16 bit pattern to float32
func f16ToF32(bits uint16) float32 {
	return f16LookupTable[bits]
}

// f32ToF16 converts a float32 to its nearest fp16 bit pattern
func f32ToF16(v float32) uint16 {
	return float16.Fromfloat32(v).Bits()
}
