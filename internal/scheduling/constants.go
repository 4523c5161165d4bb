package scheduling

// Default configuration values
const (
	DefaultStepMinutes     = 15
	DefaultDurationMinutes = 60
	DefaultMaxRangeDays    = 90
)

// Business validation constants
const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 12 * 60
)
