// Package config provides configuration management for the sync engine.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Remote: base URL and credentials of the remote authority API
//   - Database: path and pragmas of the SQLite shadow database
//   - Storage: S3/MinIO credentials and bucket settings for media
//   - Log: Logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Path)
package config
