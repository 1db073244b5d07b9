package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/AaronLay10/SentientDialogue/internal/log"
)

// ResolveSecret reads a secret value using the *_FILE convention.
// If envName+"_FILE" is set, the secret is read from that file path and
// takes precedence. Otherwise the value of envName is returned, possibly
// empty. An unreadable file is an error.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// MustResolveSecret is like ResolveSecret but logs and exits on error.
// Use this for secrets read during startup.
func MustResolveSecret(envName string) string {
	value, err := ResolveSecret(envName)
	if err != nil {
		// the error names the file, never its content
		log.WithComponent("config").Error("secret unavailable",
			slog.String("env", envName),
			slog.Any("error", err))
		os.Exit(1)
	}
	return value
}
