// Package engine decodes serialized host-engine plans into plan trees.
//
// Plan shapes differ between engine versions. Each supported version is
// registered as an Adapter; ForVersion picks the adapter for a running
// engine.
package engine

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// Adapter decodes plan documents of one engine version.
type Adapter interface {
	// Version returns the engine version this adapter understands.
	Version() string
	// Decode parses a serialized plan tree.
	Decode(doc []byte) (plan.Node, error)
}

// Document is a plan file as produced by the host listener: an optional
// envelope carrying the operation and engine version around the plan.
type Document struct {
	EngineVersion string          `json:"engineVersion,omitempty"`
	Operation     json.RawMessage `json:"operation,omitempty"`
	Plan          json.RawMessage `json:"plan"`
}

// ParseDocument splits doc into envelope and plan. A document without an
// envelope is returned with only Plan set.
func ParseDocument(doc []byte) (*Document, error) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, fmt.Errorf("empty plan document")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse plan document: %w", err)
	}
	if _, isPlan := probe["class"]; isPlan {
		return &Document{Plan: doc}, nil
	}

	var d Document
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("failed to parse plan envelope: %w", err)
	}
	if len(d.Plan) == 0 {
		return nil, &plan.PlanShapeError{Node: "document", Field: "plan"}
	}
	return &d, nil
}
