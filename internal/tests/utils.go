package tests

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/lpstake/lpstake/internal/config"
)

// GetDbConfigFromEnv reads the database used by integration tests.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(os.Getenv("LPSTAKE_TEST_DB_PORT"))
	if err != nil {
		port = 5432
	}
	host := os.Getenv("LPSTAKE_TEST_DB_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("LPSTAKE_TEST_DB_USER")
	if user == "" {
		user = "lpstake"
	}
	return &config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: os.Getenv("LPSTAKE_TEST_DB_PASSWORD"),
		DbName:   os.Getenv("LPSTAKE_TEST_DB_NAME"),
	}
}

// DatabaseTestsEnabled reports whether a Postgres instance is available for tests.
func DatabaseTestsEnabled() bool {
	return os.Getenv("LPSTAKE_TEST_DB_ENABLED") == "true"
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%x", id[:8]), nil
}
