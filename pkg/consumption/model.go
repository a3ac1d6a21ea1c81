package consumption

// Profile holds the static power coefficients, all in Watts.
//   - BaseWatts: fixed draw of the machine regardless of size
//   - WattsPerCore: added per logical core
//   - WattsPerGB: added per GB of installed RAM
type Profile struct {
	BaseWatts    float64 `yaml:"base_watts" toml:"base_watts" json:"base_watts"`
	WattsPerCore float64 `yaml:"watts_per_core" toml:"watts_per_core" json:"watts_per_core"`
	WattsPerGB   float64 `yaml:"watts_per_gb" toml:"watts_per_gb" json:"watts_per_gb"`
}

// DefaultProfile returns a Profile pre-filled with the default coefficients.
func DefaultProfile() Profile {
	return Profile{
		BaseWatts:    10.0,  // W board, fans, disks
		WattsPerCore: 4.0,   // W per logical core under load
		WattsPerGB:   0.375, // W per GB DRAM (~3 W per 8 GB DIMM)
	}
}

// PowerRate is the host description plus the derived energy rate. It is
// computed once per run and does not change while enumerating.
type PowerRate struct {
	CoreCount int     `json:"core_count"`
	RAMGB     float64 `json:"ram_gb"`
	MHz       float64 `json:"mhz"`
	ModelName string  `json:"model_name"`

	// RateMilliwattHoursPerHour is (base + perCore*cores + perGB*ramGB) * 1000.
	RateMilliwattHoursPerHour float64 `json:"rate_mwh_per_hour"`
}
