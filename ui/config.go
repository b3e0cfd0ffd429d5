package ui

// Config contains TUI-specific configuration.
type Config struct {
	Topic           string
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Frames per second for the mouth meters.
	FPS int `env:"TROUPE_UI_FPS" envDefault:"20"`

	// For debugging the UI
	HighPerformancePager bool `env:"TROUPE_HIGH_PERFORMANCE_PAGER" envDefault:"true"`
	GlamourEnabled       bool `env:"TROUPE_ENABLE_GLAMOUR"         envDefault:"true"`
}
