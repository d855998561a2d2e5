package rule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"servicenow-cmdb-integration/internal/logger"
)

// RulesLoader handles loading rule trees from the filesystem
type RulesLoader struct {
	logger *logger.Logger
}

// NewRulesLoader creates a new rules loader
func NewRulesLoader(log *logger.Logger) *RulesLoader {
	return &RulesLoader{
		logger: log,
	}
}

// LoadFile parses a single JSON rule file.
func (l *RulesLoader) LoadFile(path string) (Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		l.logger.Error("failed to parse rule file",
			"path", path,
			"error", err)
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	return r, nil
}

// LoadFromDirectory loads every *.json rule below path, keyed by file name without extension.
func (l *RulesLoader) LoadFromDirectory(path string) (map[string]Rule, error) {
	rules := make(map[string]Rule)

	err := filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		l.logger.Debug("loading rule file", "path", path)

		r, err := l.LoadFile(path)
		if err != nil {
			return err
		}

		name := strings.TrimSuffix(filepath.Base(path), ".json")
		if _, dup := rules[name]; dup {
			return fmt.Errorf("duplicate rule name %q at %s", name, path)
		}
		rules[name] = r
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	l.logger.Info("rules loaded successfully",
		"totalRules", len(rules))

	return rules, nil
}
