package utils

import (
	"github.com/joho/godotenv"
)

// LoadEnv loads a local .env file if one exists. Missing files are fine;
// production deployments set real environment variables instead.
func LoadEnv() {
	_ = godotenv.Load()
}
