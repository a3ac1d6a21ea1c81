package consumption

import (
	"github.com/ja7ad/rectask/pkg/system/host"
)

// Model turns host facts into a constant energy rate.
type Model struct {
	profile Profile
}

// NewModel creates a model with the given profile.
// Fields > 0 in p override defaults; zero or negative fields are treated as
// "unset". A nil profile uses defaults as-is.
func NewModel(p *Profile) *Model {
	merged := DefaultProfile()
	if p == nil {
		return &Model{profile: merged}
	}

	if p.BaseWatts > 0 {
		merged.BaseWatts = p.BaseWatts
	}
	if p.WattsPerCore > 0 {
		merged.WattsPerCore = p.WattsPerCore
	}
	if p.WattsPerGB > 0 {
		merged.WattsPerGB = p.WattsPerGB
	}
	return &Model{profile: merged}
}

// Profile returns the effective coefficients.
func (m *Model) Profile() Profile { return m.profile }

// Rate computes the energy rate for the given host.
//
// The result is the wattage sum scaled by 1000 and used directly as
// mWh per hour of wall-clock time:
//
//	rate = (base + perCore*cores + perGB*ramGB) * 1000
//
// NOTE: the units only line up if the wattage sum is read as kW-equivalent;
// budgets and stored task metrics depend on these exact numbers, so the
// formula must not change.
func (m *Model) Rate(info host.Info) PowerRate {
	ramGB := info.RAMGB()
	watts := m.profile.BaseWatts +
		m.profile.WattsPerCore*float64(info.CoreCount) +
		m.profile.WattsPerGB*ramGB

	return PowerRate{
		CoreCount:                 info.CoreCount,
		RAMGB:                     ramGB,
		MHz:                       info.MHz,
		ModelName:                 info.ModelName,
		RateMilliwattHoursPerHour: watts * 1000,
	}
}
