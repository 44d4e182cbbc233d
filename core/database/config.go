package database

// Config holds configuration for the shadow database file.
type Config struct {
	// Path is the SQLite database file. ":memory:" opens a throwaway DB.
	Path string `mapstructure:"path" default:"notehub.db"`
	// BusyTimeoutMillis is how long a locked write waits before failing.
	BusyTimeoutMillis int `mapstructure:"busy_timeout_millis" default:"5000"`
	// JournalMode is the SQLite journal mode.
	JournalMode string `mapstructure:"journal_mode" default:"WAL"`
}
