// LadderSync - Resilient StarCraft II Ladder Data Ingestion
// Copyright 2026 LadderSync contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sc2-pulse/laddersync

package models

// Region identifies a logical shard of the upstream ladder API.
type Region string

const (
	RegionUS Region = "US"
	RegionEU Region = "EU"
	RegionKR Region = "KR"
	RegionCN Region = "CN"
)

// AllRegions returns every supported region in stable enumeration order.
// Router fallback selection and tests rely on this ordering being fixed.
func AllRegions() []Region {
	return []Region{RegionUS, RegionEU, RegionKR, RegionCN}
}

// IsValid reports whether r is a recognized region.
func (r Region) IsValid() bool {
	switch r {
	case RegionUS, RegionEU, RegionKR, RegionCN:
		return true
	}
	return false
}

// String returns the region as a human-readable string.
func (r Region) String() string { return string(r) }

// defaultFallback maps each region to its documented redirect target used
// when the region itself is degraded.
var defaultFallback = map[Region]Region{
	RegionUS: RegionEU,
	RegionEU: RegionUS,
	RegionKR: RegionUS,
	RegionCN: RegionUS,
}

// Fallback returns the documented default redirect target for r.
func (r Region) Fallback() Region {
	if fb, ok := defaultFallback[r]; ok {
		return fb
	}
	return r
}

// ParseRegion converts a string to a Region, reporting whether it is valid.
func ParseRegion(s string) (Region, bool) {
	r := Region(s)
	return r, r.IsValid()
}
