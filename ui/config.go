package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Initial shuffle speed, 1-100
	Speed int

	// Directory holding the cache files; watched for changes made by
	// other cardshuffler processes. Empty disables watching.
	CacheDir string

	// Serve the last cached snapshot without contacting the API
	Offline bool

	EnableMouse bool

	// Environment overrides
	AltScreen bool `env:"CARDSHUFFLER_ALT_SCREEN" envDefault:"true"`
	ShowLinks bool `env:"CARDSHUFFLER_SHOW_LINKS" envDefault:"true"`
	SpeedStep int  `env:"CARDSHUFFLER_SPEED_STEP" envDefault:"5"`
}
