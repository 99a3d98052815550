package pipeline

import (
	"fmt"

	iface "EdgeLPR/interface"
)

// FormatReport renders the operator-facing line printed for every frame.
func FormatReport(r iface.Report) string {
	switch {
	case r.Found:
		return fmt.Sprintf("[%.2fHz] Plate found (score:%.2f): %s", r.Hz(), r.Score, r.Plate)
	case r.Failed():
		return fmt.Sprintf("[%.2fHz] Frame failed (%s) - Max score: %.2f", r.Hz(), r.Reason, r.MaxScore)
	default:
		return fmt.Sprintf("[%.2fHz] No plates with score >= %.2f - Max score: %.2f", r.Hz(), r.Floor, r.MaxScore)
	}
}
