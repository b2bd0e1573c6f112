package models

// Preferences are flat key-value settings. They are always handled as
// a fully merged object: defaults first, then stored values, then any
// explicit update, each key overwriting the last. Keeping this a map
// lets default keys added in later releases backfill existing installs
// without migration code.
type Preferences map[string]string

// DefaultPreferences returns the documented defaults. Callers receive
// a fresh copy.
func DefaultPreferences() Preferences {
	return Preferences{
		"weightUnit":   "kg",
		"heightUnit":   "cm",
		"distanceUnit": "km",
		"energyUnit":   "kcal",
		"fluidUnit":    "ml",
		"dateFormat":   "DD/MM/YYYY",
		"timeFormat":   "24h",
	}
}

// Merge overlays the given layers left to right on top of p and
// returns the result; p itself is not modified.
func (p Preferences) Merge(layers ...Preferences) Preferences {
	merged := Preferences{}
	for k, v := range p {
		merged[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}
