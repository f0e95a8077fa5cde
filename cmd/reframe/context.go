package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/reframe-api/internal/apiclient"
)

const defaultAPIURL = apiclient.DefaultBaseURL

type commandContext struct {
	apiURL     string
	stateDir   string
	logLevel   string
	jsonOutput bool
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// loadEnv reads a .env file from the working directory when present.
func (c *commandContext) loadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *commandContext) baseURL() string {
	if u := strings.TrimSpace(c.apiURL); u != "" {
		return u
	}
	if u := strings.TrimSpace(os.Getenv("REFRAME_API_URL")); u != "" {
		return u
	}
	return defaultAPIURL
}

func (c *commandContext) sessionDir() (string, error) {
	dir := strings.TrimSpace(c.stateDir)
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			cache = os.TempDir()
		}
		dir = filepath.Join(cache, "reframe")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

func (c *commandContext) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *commandContext) client() (*apiclient.Client, error) {
	return apiclient.NewClient(c.baseURL(), apiclient.WithLogger(c.logger()))
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
