package voxel

// BlockIndex maps coordinate x in a dimension of extent dim onto one of n
// blocks using the integer formula (n*x)/dim. The adaptive noise floor keys
// its per-block statistics on this partition.
func BlockIndex(n, x, dim int) int {
	return (n * x) / dim
}

// Span is a half-open index interval [Lo, Hi).
type Span struct {
	Lo int
	Hi int
}

// Len returns the number of indices covered by the span.
func (s Span) Len() int {
	return s.Hi - s.Lo
}

// ZBlocks partitions an extent into consecutive spans of the given size; the
// last span is clipped to the extent. A size below 1 is treated as 1.
func ZBlocks(extent, size int) []Span {
	if size < 1 {
		size = 1
	}
	spans := make([]Span, 0, (extent+size-1)/size)
	for lo := 0; lo < extent; lo += size {
		hi := lo + size
		if hi > extent {
			hi = extent
		}
		spans = append(spans, Span{Lo: lo, Hi: hi})
	}
	return spans
}
