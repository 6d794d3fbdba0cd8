package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileSource читает права из YAML-файла на каждый вызов, поэтому правка файла
// вступает в силу без рестарта. Формат:
//
//	agents:
//	  agent-007:
//	    Tasks: {view: true, create: true}
//	    Leads: {view: true}
type FileSource struct {
	path string
}

type permissionsFile struct {
	Agents map[string]domain.PermissionMatrix `yaml:"agents"`
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Matrix(_ context.Context, agentID string) (domain.PermissionMatrix, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read permissions file: %w", err)
	}

	var f permissionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse permissions file %s: %w", s.path, err)
	}
	return f.Agents[agentID], nil
}
