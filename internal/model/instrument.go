package model

import "sort"

// Category groups instruments for concentration caps.
type Category string

const (
	CategoryCore      Category = "core"
	CategoryGlobal    Category = "global"
	CategorySector    Category = "sector"
	CategoryCommodity Category = "commodity"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCore, CategoryGlobal, CategorySector, CategoryCommodity:
		return true
	}
	return false
}

// InstrumentProfile is the static configuration of one ETF in the basket.
type InstrumentProfile struct {
	Symbol   string   `yaml:"symbol"`
	Name     string   `yaml:"name"`
	Category Category `yaml:"category"`
	Target   float64  `yaml:"target"`   // monthly spend target
	Priority int      `yaml:"priority"` // lower is evaluated first
	Silver   bool     `yaml:"silver"`   // subject to the silver hard cap
}

// ByPriority returns a copy of instruments ordered by ascending priority.
// Equal priorities keep declaration order.
func ByPriority(instruments []InstrumentProfile) []InstrumentProfile {
	out := make([]InstrumentProfile, len(instruments))
	copy(out, instruments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// FindInstrument looks up a profile by symbol.
func FindInstrument(instruments []InstrumentProfile, symbol string) (InstrumentProfile, bool) {
	for _, in := range instruments {
		if in.Symbol == symbol {
			return in, true
		}
	}
	return InstrumentProfile{}, false
}
