package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/viewtrace/internal/domain"
)

// Report renders a session record as a formatted human-readable summary.
// Export paths run on demand, never on the interactive path.
func Report(r domain.SessionRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Session %s\n", r.SessionID)
	fmt.Fprintf(&sb, "Started:  %s\n", formatMs(r.StartTimeMs))
	if r.EndTimeMs != 0 {
		fmt.Fprintf(&sb, "Ended:    %s\n", formatMs(r.EndTimeMs))
	} else {
		sb.WriteString("Ended:    (session open)\n")
	}
	fmt.Fprintf(&sb, "Duration: %s\n", time.Duration(r.TotalDurationMs)*time.Millisecond)
	fmt.Fprintf(&sb, "Pages viewed: %d\n", r.TotalPages)
	fmt.Fprintf(&sb, "Interactions: %d\n", len(r.Interactions))

	if len(r.PageViews) > 0 {
		sb.WriteString("\nPage views:\n")
		for _, pv := range r.PageViews {
			fmt.Fprintf(&sb, "  page %-4d %8s  moves=%d scrolls=%d zooms=%d rotations=%d\n",
				pv.PageNumber,
				time.Duration(pv.TotalTimeMs)*time.Millisecond,
				pv.MouseMovements, pv.ScrollEvents, pv.ZoomChanges, pv.RotationChanges,
			)
		}
	}

	if r.HeatmapSummary != nil && len(r.HeatmapSummary.Pages) > 0 {
		sb.WriteString("\nHeatmap:\n")
		for _, ps := range r.HeatmapSummary.Pages {
			fmt.Fprintf(&sb, "  page %-4d cells=%d peak=%.2f total=%.2f\n",
				ps.PageNumber, ps.CellCount, ps.PeakIntensity, ps.TotalWeight)
		}
	}

	counts := make(map[domain.EventType]int)
	for _, ev := range r.Interactions {
		counts[ev.Type]++
	}
	if len(counts) > 0 {
		sb.WriteString("\nEvent counts:\n")
		for _, et := range []domain.EventType{
			domain.EventClick, domain.EventScroll, domain.EventZoom,
			domain.EventRotate, domain.EventNavigate, domain.EventSnip,
		} {
			if n := counts[et]; n > 0 {
				fmt.Fprintf(&sb, "  %-10s %d\n", et, n)
			}
		}
	}

	return sb.String()
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
