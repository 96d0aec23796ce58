package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Default public STUN servers, matching the product's browser clients.
var defaultSTUN = []string{
	"stun:stun.l.google.com:19302",
	"stun:global.stun.twilio.com:3478",
}

// Config holds the application configuration.
type Config struct {
	MongoURI string
	Database string
	UserID   string
	UserName string
	STUNURLs []string
	LogLevel logrus.Level
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	uri := os.Getenv("TASKCALL_MONGO_URI")
	if uri == "" {
		return nil, fmt.Errorf("TASKCALL_MONGO_URI environment variable is required")
	}

	user := os.Getenv("TASKCALL_USER")
	if user == "" {
		return nil, fmt.Errorf("TASKCALL_USER environment variable is required")
	}

	db := os.Getenv("TASKCALL_DB")
	if db == "" {
		db = "taskmanager"
	}

	stun := defaultSTUN
	if v := os.Getenv("TASKCALL_STUN"); v != "" {
		stun = nil
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				stun = append(stun, u)
			}
		}
		if len(stun) == 0 {
			return nil, fmt.Errorf("TASKCALL_STUN is set but contains no server URLs")
		}
	}

	level := logrus.InfoLevel
	if v := os.Getenv("TASKCALL_LOG_LEVEL"); v != "" {
		l, err := logrus.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("parse TASKCALL_LOG_LEVEL: %w", err)
		}
		level = l
	}

	return &Config{
		MongoURI: uri,
		Database: db,
		UserID:   user,
		UserName: os.Getenv("TASKCALL_USER_NAME"),
		STUNURLs: stun,
		LogLevel: level,
	}, nil
}
