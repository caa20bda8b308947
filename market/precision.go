package market

// QtyDecimals derives the number of decimal places a pair's tradable
// quantity should be rounded to from the exchange's minimum order size:
// the count of ×10 multiplications needed to raise it to at least 1.
//
// Examples: 0.001 → 3, 0.1 → 1, 1 → 0.
func QtyDecimals(minOrderSize float64) int {
	if minOrderSize <= 0 {
		return 0
	}
	n := 0
	for minOrderSize < 1 {
		minOrderSize *= 10
		n++
	}
	return n
}
