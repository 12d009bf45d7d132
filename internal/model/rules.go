package model

// ZoneThresholds are the change-percentage boundaries between zones.
type ZoneThresholds struct {
	Crash     float64 // p <= Crash is CRASH
	Normal    float64 // Crash < p <= Normal is DIP
	SkipAbove float64 // p > SkipAbove is SKIP
}

// CategoryCaps are concentration limits in percent of total invested.
type CategoryCaps struct {
	Core      float64
	Global    float64
	Sector    float64
	Commodity float64
	Silver    float64
}

// For returns the cap configured for a category.
func (c CategoryCaps) For(cat Category) float64 {
	switch cat {
	case CategoryCore:
		return c.Core
	case CategoryGlobal:
		return c.Global
	case CategorySector:
		return c.Sector
	case CategoryCommodity:
		return c.Commodity
	}
	return 0
}

// AllocationRules is the immutable budget and diversification policy.
type AllocationRules struct {
	MonthlyBudget  float64
	DailyBase      float64
	MinPurchase    float64
	CrashAmount    float64
	DipAmount      float64
	CrashBuffer    float64
	MonthEndDays   int
	Caps           CategoryCaps
	Zones          ZoneThresholds
	EnforceAllCaps bool
}
