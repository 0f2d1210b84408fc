package models

// Well-known setting keys.
const (
	SettingPendingThresholdSeconds       = "PENDING_THRESHOLD_SECONDS"
	SettingLeasePriceThresholdPercentage = "LEASE_PRICE_THRESHOLD_PERCENTAGE"
)

type Setting struct {
	Key         string
	Value       string
	Description string
}
