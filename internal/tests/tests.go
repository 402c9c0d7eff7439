package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/clearstake/stakewatch/internal/config"
	"github.com/google/uuid"
)

// GetConfig builds a config for tests from the STAKEWATCH_TEST_* environment.
// Storage tests skip entirely when no test database host is configured.
func GetConfig() *config.Config {
	return &config.Config{
		Debug:          true,
		DatabaseConfig: *GetDbConfigFromEnv(),
	}
}

func GetDbConfigFromEnv() *config.DatabaseConfig {
	port := 5432
	if p, err := strconv.Atoi(os.Getenv("STAKEWATCH_TEST_DATABASE_PORT")); err == nil {
		port = p
	}
	return &config.DatabaseConfig{
		Host:     os.Getenv("STAKEWATCH_TEST_DATABASE_HOST"),
		Port:     port,
		User:     os.Getenv("STAKEWATCH_TEST_DATABASE_USER"),
		Password: os.Getenv("STAKEWATCH_TEST_DATABASE_PASSWORD"),
		DbName:   os.Getenv("STAKEWATCH_TEST_DATABASE_DB_NAME"),
	}
}

func DatabaseTestsEnabled() bool {
	return os.Getenv("STAKEWATCH_TEST_DATABASE_HOST") != ""
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("stakewatch_test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}
