package pipeline

import iface "EdgeLPR/interface"

// SelectBest returns the index of the highest-scoring candidate, the first one
// on ties, or -1 when there are no candidates. Only one plate per frame is ever
// reported; frames with several plates surface the most confident one.
func SelectBest(cands []iface.Detection) int {
	best := -1
	for i, c := range cands {
		if c.Score != c.Score { // NaN
			continue
		}
		if best < 0 || c.Score > cands[best].Score {
			best = i
		}
	}
	return best
}
