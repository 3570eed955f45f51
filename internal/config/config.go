// Package config reads the daemon's configuration from environment
// variables, optionally seeded from a .env file during development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	portEnvVar        = "PORT"
	appNameEnvVar     = "APP_NAME"
	suiteIDEnvVar     = "SUITE_ID"
	suiteSecretEnvVar = "SUITE_SECRET"
	baseURLEnvVar     = "WECOM_BASE_URL"
)

type Config interface {
	GetPort() string
	GetAppName() string
	GetSuiteID() string
	GetSuiteSecret() string
	GetWecomBaseURL() string
	GetEnv() string
}

type envConfig struct{}

var _ Config = envConfig{}

// New loads a .env file when present and returns the env-backed config. A
// missing .env file is not an error; production hosts set real environment
// variables.
func New() Config {
	_ = godotenv.Load()
	return envConfig{}
}

func (envConfig) GetPort() string {
	port := getEnv(portEnvVar, "8080")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (envConfig) GetAppName() string {
	return getEnv(appNameEnvVar, "weworkd")
}

func (envConfig) GetSuiteID() string {
	return getEnv(suiteIDEnvVar, "")
}

func (envConfig) GetSuiteSecret() string {
	return getEnv(suiteSecretEnvVar, "")
}

// GetWecomBaseURL is overridable so staging environments can point the
// client at a mock of the remote service.
func (envConfig) GetWecomBaseURL() string {
	return getEnv(baseURLEnvVar, "")
}

func (envConfig) GetEnv() string {
	return getEnv("ENV", "DEV")
}

func getEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
