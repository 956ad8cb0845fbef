package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/programme-lv/grader/internal/xdg"
)

type EnvConfig struct {
	Home        string
	DockerBin   string
	NatsURL     string
	NatsSubject string
	// NatsRequestSubject is where "grader serve" listens for grade requests.
	NatsRequestSubject string
	SqsURL             string
	LogLevel           string
}

// ReadEnvConfig loads .env from the working directory, if there is one, and
// reads the GRADER_* variables.
func ReadEnvConfig() (*EnvConfig, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	result := &EnvConfig{
		Home:               os.Getenv("GRADER_HOME"),
		DockerBin:          getEnv("GRADER_DOCKER_BIN", "docker"),
		NatsURL:            os.Getenv("GRADER_NATS_URL"),
		NatsSubject:        getEnv("GRADER_NATS_SUBJECT", "grader.events"),
		NatsRequestSubject: getEnv("GRADER_NATS_REQUEST_SUBJECT", "grader.requests"),
		SqsURL:             os.Getenv("GRADER_SQS_URL"),
		LogLevel:           getEnv("GRADER_LOG_LEVEL", "info"),
	}

	if result.Home == "" {
		result.Home = defaultHome()
	}

	return result, nil
}

// defaultHome prefers a grader home in the working directory and falls
// back to the XDG data directory.
func defaultHome() string {
	if _, err := os.Stat(FileName); err == nil {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return xdg.New().AppDataDir("grader")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// AssignmentsDir is where assignment directories live below the home.
func AssignmentsDir(home string) string {
	return filepath.Join(home, "assignments")
}
