// Command seed loads YAML workflow definitions from a directory and inserts
// them into the cascade database, skipping names that already exist.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cascadehq/cascade/internal/config"
	"github.com/cascadehq/cascade/internal/graph"
	"github.com/cascadehq/cascade/internal/model"
	"github.com/cascadehq/cascade/internal/store"
)

// workflowFile is the YAML shape of one workflow definition on disk.
type workflowFile struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Status      string       `yaml:"status"`
	Tags        []string     `yaml:"tags"`
	CreatedBy   string       `yaml:"created_by"`
	Triggers    []triggerDef `yaml:"triggers"`
	Actions     []actionDef  `yaml:"actions"`
}

type triggerDef struct {
	Type    string         `yaml:"type"`
	Config  map[string]any `yaml:"config"`
	Enabled bool           `yaml:"enabled"`
}

type actionDef struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type"`
	AgentID        string         `yaml:"agent_id"`
	Config         map[string]any `yaml:"config"`
	Dependencies   []string       `yaml:"dependencies"`
	MaxRetries     int            `yaml:"max_retries"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
}

func main() {
	dir := flag.String("dir", "workflows", "directory containing YAML workflow definitions")
	flag.Parse()

	ctx := context.Background()
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	existing, _, err := db.ListWorkflows(ctx, store.WorkflowFilter{})
	if err != nil {
		log.Fatalf("failed to list existing workflows: %v", err)
	}
	existingNames := make(map[string]bool, len(existing))
	for _, w := range existing {
		existingNames[w.Name] = true
	}

	paths, err := filepath.Glob(filepath.Join(*dir, "*.yaml"))
	if err != nil {
		log.Fatalf("failed to scan %s: %v", *dir, err)
	}
	ymlPaths, err := filepath.Glob(filepath.Join(*dir, "*.yml"))
	if err != nil {
		log.Fatalf("failed to scan %s: %v", *dir, err)
	}
	paths = append(paths, ymlPaths...)
	if len(paths) == 0 {
		log.Fatalf("no workflow definitions found in %s", *dir)
	}

	seeded := 0
	for _, path := range paths {
		wf, err := loadWorkflowFile(path)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if existingNames[wf.Name] {
			logger.Info("skipping existing workflow", "name", wf.Name, "path", path)
			continue
		}
		if err := db.CreateWorkflow(ctx, wf); err != nil {
			log.Fatalf("failed to create workflow %q: %v", wf.Name, err)
		}
		logger.Info("seeded workflow", "id", wf.ID, "name", wf.Name, "actions", len(wf.Actions))
		seeded++
	}

	logger.Info("seeding complete", "seeded", seeded, "skipped", len(paths)-seeded)
}

// loadWorkflowFile parses and validates one YAML definition.
func loadWorkflowFile(path string) (*model.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var def workflowFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%s: name is required", path)
	}
	if def.Status == "" {
		def.Status = model.WorkflowDraft
	}

	actions := make([]model.Action, len(def.Actions))
	for i, a := range def.Actions {
		actions[i] = model.Action{
			ID:             a.ID,
			Name:           a.Name,
			Type:           a.Type,
			AgentID:        a.AgentID,
			Config:         a.Config,
			Dependencies:   a.Dependencies,
			MaxRetries:     a.MaxRetries,
			TimeoutSeconds: a.TimeoutSeconds,
		}
	}
	if err := graph.Validate(actions); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	triggers := make([]model.Trigger, len(def.Triggers))
	for i, tr := range def.Triggers {
		triggers[i] = model.Trigger{Type: tr.Type, Config: tr.Config, Enabled: tr.Enabled}
	}

	now := time.Now().UTC()
	return &model.Workflow{
		ID:          model.NewID(),
		Name:        def.Name,
		Description: def.Description,
		Status:      def.Status,
		Triggers:    triggers,
		Actions:     actions,
		Tags:        def.Tags,
		CreatedBy:   def.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
