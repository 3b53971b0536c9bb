package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOrganizer()
	c.normalizeCategories()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("SHELVER_WATCH_ROOT"); ok && strings.TrimSpace(value) != "" {
		c.WatchRoot = strings.TrimSpace(value)
	}
	if c.WatchRoot, err = expandPath(strings.TrimSpace(c.WatchRoot)); err != nil {
		return fmt.Errorf("watch_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOrganizer() {
	if len(c.Organizer.IgnorePatterns) == 0 {
		c.Organizer.IgnorePatterns = DefaultIgnorePatterns()
		return
	}
	patterns := make([]string, 0, len(c.Organizer.IgnorePatterns))
	for _, pattern := range c.Organizer.IgnorePatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Organizer.IgnorePatterns = patterns
}

func (c *Config) normalizeCategories() {
	if len(c.Categories) == 0 {
		c.Categories = DefaultCategories()
		return
	}
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.Name = strings.TrimSpace(cat.Name)
		cat.Extensions = trimAll(cat.Extensions)
		for j := range cat.Subcategories {
			sub := &cat.Subcategories[j]
			sub.Name = strings.TrimSpace(sub.Name)
			sub.Extensions = trimAll(sub.Extensions)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
