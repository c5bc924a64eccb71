// Package protection resolves the maximum permitted earth fault loop
// impedance for a protective device.
package protection

import "sort"

// Entry is a row of the maximum Zs table.
type Entry struct {
	MaxZs  float64 `json:"max_zs" yaml:"max_zs"`
	Source string  `json:"source" yaml:"source"`
	Notes  string  `json:"notes" yaml:"notes"`
}

// Row pairs an Entry with its key for listing.
type Row struct {
	Device Device
	Entry  Entry
}

var maxZsTable = buildTable()

// LookupMaxZs returns the table entry for the exact (type, rating, curve)
// triple. The boolean is false when the combination is not tabulated; callers
// must treat that as "cannot evaluate".
func LookupMaxZs(deviceType DeviceType, rating int, curve Curve) (Entry, bool) {
	entry, ok := maxZsTable[Device{Type: deviceType, Rating: rating, Curve: curve}]
	return entry, ok
}

// Lookup is LookupMaxZs keyed by a Device.
func Lookup(d Device) (Entry, bool) {
	return LookupMaxZs(d.Type, d.Rating, d.Curve)
}

// Entries returns every tabulated row ordered by type, curve and rating.
func Entries() []Row {
	rows := make([]Row, 0, len(maxZsTable))
	for d, e := range maxZsTable {
		rows = append(rows, Row{Device: d, Entry: e})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Device, rows[j].Device
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Curve != b.Curve {
			return a.Curve < b.Curve
		}
		return a.Rating < b.Rating
	})
	return rows
}
