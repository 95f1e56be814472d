package types

// TimeOfDay is a 24-hour wall-clock time as carried on the command link.
type TimeOfDay struct {
	Hour   uint8 `json:"hour"`
	Minute uint8 `json:"minute"`
	Second uint8 `json:"second"`
}

// Date is a calendar date with a two-digit year (00..99 => 2000..2099).
type Date struct {
	Day   uint8 `json:"day"`
	Month uint8 `json:"month"`
	Year  uint8 `json:"year"`
}
