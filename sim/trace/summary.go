package trace

// TraceSummary aggregates statistics from a WiringTrace.
type TraceSummary struct {
	TotalLinks         int
	OwnLinks           int
	InheritedLinks     int
	SelfLinks          int
	PollingLinks       int
	UnsetTimeBase      int
	SubComponents      int
	AnonymousLoads     int
	Clocks             int
	OneShots           int
	InheritedFromOwner map[string]int // ancestor name → endpoints handed down
}

// Summarize computes aggregate statistics from a WiringTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(wt *WiringTrace) *TraceSummary {
	summary := &TraceSummary{
		InheritedFromOwner: make(map[string]int),
	}
	if wt == nil {
		return summary
	}

	summary.TotalLinks = len(wt.Links)
	for _, l := range wt.Links {
		switch l.Source {
		case LinkSourceOwn:
			summary.OwnLinks++
		case LinkSourceInherited:
			summary.InheritedLinks++
			summary.InheritedFromOwner[l.From]++
		case LinkSourceSelf:
			summary.SelfLinks++
		}
		if l.Polling {
			summary.PollingLinks++
		}
		if l.TimeBaseFactor == 0 {
			summary.UnsetTimeBase++
		}
	}

	summary.SubComponents = len(wt.SubComponents)
	for _, s := range wt.SubComponents {
		if s.Anonymous {
			summary.AnonymousLoads++
		}
	}

	for _, t := range wt.Timings {
		switch t.Kind {
		case TimingClock:
			summary.Clocks++
		case TimingOneShot:
			summary.OneShots++
		}
	}

	return summary
}
