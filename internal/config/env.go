package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvironment loads variables from an env file into the process environment.
// LIBRARY_ENV_FILE names the file directly; otherwise LIBRARY_ENV=<name> selects
// ".env.<name>". Variables already set in the environment win over the file.
// Returns the loaded path, or "" when no file was selected.
func LoadEnvironment() (string, error) {
	path := os.Getenv(EnvFile)
	explicit := path != ""
	if !explicit {
		name := os.Getenv(EnvName)
		if name == "" {
			return "", nil
		}
		path = ".env." + name
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			log.Printf("Env file %s not found, using process environment only", path)
			return "", nil
		}
		return "", fmt.Errorf("env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	log.Printf("Loaded environment from %s", path)
	return path, nil
}
