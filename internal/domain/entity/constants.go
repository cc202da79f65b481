package entity

// Invoice payment status constants
const (
	StatusUnpaid  = "unpaid"
	StatusPartial = "partial"
	StatusPaid    = "paid"
)

// Frequency is the cadence of a recurring invoice
type Frequency string

// Recurring frequency constants
const (
	FrequencyDaily      Frequency = "daily"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyEveryNDays Frequency = "every_n_days"
)

// Recurring defaults
const (
	DefaultDueInDays         = 14
	MaxOccurrencesPerPass    = 24
	DefaultCurrency          = "USD"
	TaxModePercent           = "%"
	OwnerKey                 = "owner"
	DefaultDeviceType        = "singleDevice"
	MultiDeviceType          = "multiDevice"
	MaxCredentialLabelLength = 50
)

// Session method constants
const (
	MethodPIN      = "pin"
	MethodWebAuthn = "webauthn"
)

// IsValidStatus reports whether s is a known invoice status
func IsValidStatus(s string) bool {
	switch s {
	case StatusUnpaid, StatusPartial, StatusPaid:
		return true
	}
	return false
}

// IsValidFrequency reports whether f is one of the supported frequencies
func IsValidFrequency(f Frequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyEveryNDays:
		return true
	}
	return false
}
