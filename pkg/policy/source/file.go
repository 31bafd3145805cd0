package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"governor-hq/ganymede/pkg/policy"
)

// FileSource loads policy definitions from YAML files on disk.
// The path can be a single file or a directory; for a directory all .yaml
// and .yml files are loaded.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// definitionsFile is the on-disk YAML layout.
type definitionsFile struct {
	Policies []policy.Definition `yaml:"policies"`
}

// NewFileSource creates a new file-based definitions source.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.With("component", "policy.source"),
	}
}

// LoadDefinitions loads all policy definitions from the configured path.
func (s *FileSource) LoadDefinitions(ctx context.Context) ([]policy.Definition, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	var defs []policy.Definition
	if info.IsDir() {
		defs, err = s.loadDirectory()
	} else {
		defs, err = s.loadFile(s.path)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded policy definitions",
		"path", s.path,
		"definition_count", len(defs),
	)
	return defs, nil
}

// loadDirectory loads all definition files from a directory.
func (s *FileSource) loadDirectory() ([]policy.Definition, error) {
	var defs []policy.Definition

	err := filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		fileDefs, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("failed to load definitions file, skipping",
				"path", path,
				"error", err,
			)
			return nil
		}
		defs = append(defs, fileDefs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
	}

	return defs, nil
}

// loadFile loads a single definitions file.
func (s *FileSource) loadFile(path string) ([]policy.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}

	var f definitionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse definitions file %q: %w", path, err)
	}

	s.logger.Debug("loaded definitions file",
		"path", path,
		"definition_count", len(f.Policies),
	)
	return f.Policies, nil
}
