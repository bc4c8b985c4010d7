package validator

// positionFor maps a row reported by one scan attempt into source
// coordinates. start is the raw row the attempt began reading at and
// reported is the engine's 1-based row within that attempt.
//
// The engine's row is one past the offending row in this convention, so
// the error row is start+reported-1 and the next attempt begins at
// start+reported, the row after the offending one.
func positionFor(start, reported int) (row, next int) {
	abs := start + reported
	return abs - 1, abs
}
