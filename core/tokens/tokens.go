// Package tokens provides the heuristic token estimation shared by the
// context builder, the backend adapters, and the session ledger.
package tokens

// Estimate approximates the token cost of text at four characters per
// token, rounded up. The ledger only needs a consistent heuristic; backends
// that report real token counts override these estimates per turn.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateMessage adds a fixed per-message framing overhead on top of the
// content estimate.
func EstimateMessage(content string) int {
	const messageOverhead = 4
	return Estimate(content) + messageOverhead
}
