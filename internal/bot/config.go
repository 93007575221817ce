package bot

import (
	"time"
)

// Config holds the bot's interaction limits
type Config struct {
	// Number of words drilled by /practice
	PracticeSize int
	// Largest photo or voice note the bot downloads
	MaxDownloadBytes int64
	// Time allowed for downloading one file from Telegram
	DownloadTimeout time.Duration
	// Update polling timeout in seconds
	PollTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() Config {
	return Config{
		PracticeSize:     5,
		MaxDownloadBytes: 20 << 20,
		DownloadTimeout:  30 * time.Second,
		PollTimeout:      60,
	}
}
