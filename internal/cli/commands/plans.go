package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/leapstack-labs/planlineage/internal/config"
	"github.com/leapstack-labs/planlineage/internal/listener"
	"github.com/leapstack-labs/planlineage/pkg/engine"
	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// planFile is a decoded plan document.
type planFile struct {
	Path      string
	Operation listener.Operation
	Root      plan.Node
}

// loadPlanFile reads and decodes a plan document. The envelope's engine
// version wins over the configured one.
func loadPlanFile(path string, cfg *config.Config, logger *slog.Logger) (*planFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan %s: %w", path, err)
	}

	doc, err := engine.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	version := cfg.EngineVersion
	if doc.EngineVersion != "" {
		version = doc.EngineVersion
	}
	adapter, err := engine.ForVersion(version, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	root, err := adapter.Decode(doc.Plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	pf := &planFile{Path: path, Root: root}
	if len(doc.Operation) > 0 {
		if err := json.Unmarshal(doc.Operation, &pf.Operation); err != nil {
			return nil, fmt.Errorf("%s: invalid operation: %w", path, err)
		}
	}
	if pf.Operation.Identifier == "" {
		pf.Operation.Identifier = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if pf.Operation.State == "" {
		pf.Operation.State = "FINISHED"
	}
	logger.Debug("decoded plan", "path", path, "engine_version", adapter.Version(), "root", root.Kind())
	return pf, nil
}

// isPlanFile reports whether path looks like a plan document.
func isPlanFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
