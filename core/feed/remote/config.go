package remote

// Config holds configuration for the remote authority API.
type Config struct {
	// BaseURL is the API root, without trailing slash.
	BaseURL string `mapstructure:"base_url" default:"https://app.notehub.example/api"`
	// Token is the API authentication token.
	Token string `mapstructure:"token" default:""`
	// PageSize is the number of records requested per feed page.
	PageSize int `mapstructure:"page_size" default:"2000"`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
