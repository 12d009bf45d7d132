package strategy

import "ETFSentinel/internal/model"

// ClassifyZone maps a signed change percentage onto a zone.
// Boundaries resolve to the more buy-permissive zone.
func ClassifyZone(changePct float64, th model.ZoneThresholds) model.Zone {
	switch {
	case changePct > th.SkipAbove:
		return model.ZoneSkip
	case changePct <= th.Crash:
		return model.ZoneCrash
	case changePct <= th.Normal:
		return model.ZoneDip
	default:
		return model.ZoneWait
	}
}
