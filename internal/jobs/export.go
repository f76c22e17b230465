// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/meshintel/deepresearch/pkg/types"
)

// ExportBundle holds one job's full record for export.
type ExportBundle struct {
	Job      JobRecord             `json:"job" yaml:"job"`
	Findings []ExportFinding       `json:"findings" yaml:"findings"`
	Report   *types.ResearchReport `json:"report,omitempty" yaml:"report,omitempty"`
}

// ExportFinding is a finding with export-friendly field names.
type ExportFinding struct {
	ID         string `json:"id" yaml:"id"`
	SubTopicID string `json:"sub_topic_id" yaml:"sub_topic_id"`
	Provider   string `json:"provider" yaml:"provider"`
	Title      string `json:"title" yaml:"title"`
	URL        string `json:"url" yaml:"url"`
	Snippet    string `json:"snippet" yaml:"snippet"`
	SourceType string `json:"source_type" yaml:"source_type"`
}

// ExportYAML writes the job's findings and report to dir/[jobID].yaml.
func (s *Store) ExportYAML(ctx context.Context, jobID string) (string, error) {
	bundle, err := s.exportBundle(ctx, jobID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, jobID+".yaml")
	data, err := yaml.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the job's findings and report to dir/[jobID].json.
func (s *Store) ExportJSON(ctx context.Context, jobID string) (string, error) {
	bundle, err := s.exportBundle(ctx, jobID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, jobID+".json")
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) exportBundle(ctx context.Context, jobID string) (ExportBundle, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return ExportBundle{}, err
	}

	findings, err := s.Findings(ctx, jobID)
	if err != nil {
		return ExportBundle{}, fmt.Errorf("loading findings for export: %w", err)
	}

	bundle := ExportBundle{Job: job}
	for _, f := range findings {
		bundle.Findings = append(bundle.Findings, ExportFinding{
			ID:         f.ID,
			SubTopicID: f.SubTopicID,
			Provider:   f.Provider,
			Title:      f.Title,
			URL:        f.URL,
			Snippet:    f.Snippet,
			SourceType: string(f.SourceType),
		})
	}

	if rep, err := s.Report(ctx, jobID); err == nil {
		bundle.Report = &rep
	}

	return bundle, nil
}
