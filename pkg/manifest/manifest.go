// Package manifest loads and compiles pipeline manifests. A manifest is a
// YAML document declaring the validator tools and the ordered stages that
// invoke them. Manifests are schema-validated before decoding and compiled
// into the pipeline's runtime types, with every problem reported in one
// pass rather than one error per invocation.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/preflightci/preflight/pkg/constants"
	"github.com/preflightci/preflight/pkg/fileutil"
	"github.com/preflightci/preflight/pkg/logger"
	"github.com/preflightci/preflight/pkg/pipeline"
)

var manifestLog = logger.New("manifest")

// ToolDef is a tool declaration as written in the manifest.
type ToolDef struct {
	Version        string   `yaml:"version"`
	VersionArgs    []string `yaml:"version_args"`
	VersionPattern string   `yaml:"version_pattern"`
	Install        []string `yaml:"install"`
	Bin            string   `yaml:"bin"`
}

// PolicyDef is a stage's result policy as written in the manifest.
type PolicyDef struct {
	PassCodes   []int  `yaml:"pass_codes"`
	WarnCodes   []int  `yaml:"warn_codes"`
	WarnPattern string `yaml:"warn_pattern"`
	FailPattern string `yaml:"fail_pattern"`
}

// StageDef is a stage declaration as written in the manifest.
type StageDef struct {
	ID             string    `yaml:"id"`
	Tool           string    `yaml:"tool"`
	Args           []string  `yaml:"args"`
	Policy         PolicyDef `yaml:"policy"`
	Group          int       `yaml:"group"`
	TimeoutSeconds int       `yaml:"timeout_seconds"`
	Hint           string    `yaml:"hint"`
}

// Manifest is a decoded, schema-valid pipeline declaration.
type Manifest struct {
	Tools  map[string]ToolDef `yaml:"tools"`
	Stages []StageDef         `yaml:"stages"`

	// Path is where the manifest was loaded from; empty for the built-in
	// default.
	Path string `yaml:"-"`
}

// Load reads, schema-validates, and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := parse(content)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.Path = path
	manifestLog.Printf("loaded manifest %s: %d tools, %d stages", path, len(m.Tools), len(m.Stages))
	return m, nil
}

func parse(content []byte) (*Manifest, error) {
	if err := validateSchema(content); err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// Discover locates the manifest for a target: an explicit path wins, then
// the well-known names are probed in the target directory (the parent
// directory when the target is a file), and finally the built-in default
// pipeline applies.
func Discover(explicit, target string) (*Manifest, error) {
	if explicit != "" {
		return Load(explicit)
	}

	dir := target
	if fileutil.FileExists(target) {
		dir = filepath.Dir(target)
	}
	for _, name := range constants.DefaultManifestNames {
		candidate := filepath.Join(dir, name)
		if fileutil.FileExists(candidate) {
			return Load(candidate)
		}
	}

	manifestLog.Print("no manifest found, using built-in default pipeline")
	return Default()
}

// Compile resolves the manifest into runtime stages. Stage IDs must be
// unique, tool references must resolve, and policy patterns must compile;
// all violations are reported together.
func (m *Manifest) Compile() ([]pipeline.Stage, error) {
	collector := pipeline.NewErrorCollector()

	tools := make(map[string]pipeline.ToolSpec, len(m.Tools))
	for name, def := range m.Tools {
		tools[name] = pipeline.ToolSpec{
			Name:           name,
			Version:        def.Version,
			VersionArgs:    def.VersionArgs,
			VersionPattern: def.VersionPattern,
			Install:        def.Install,
			Bin:            def.Bin,
		}
		if def.VersionPattern != "" {
			if _, err := regexp.Compile(def.VersionPattern); err != nil {
				collector.Add(fmt.Errorf("tool %s: invalid version_pattern: %w", name, err))
			}
		}
	}

	seen := make(map[string]bool, len(m.Stages))
	stages := make([]pipeline.Stage, 0, len(m.Stages))
	for _, def := range m.Stages {
		if seen[def.ID] {
			collector.Add(fmt.Errorf("stage %s: duplicate stage id", def.ID))
			continue
		}
		seen[def.ID] = true

		tool, ok := tools[def.Tool]
		if !ok {
			// An undeclared tool still resolves against the system path;
			// it just cannot be provisioned.
			tool = pipeline.ToolSpec{Name: def.Tool}
		}

		policy, err := compilePolicy(def)
		if err != nil {
			collector.Add(err)
			continue
		}

		stages = append(stages, pipeline.Stage{
			ID:      def.ID,
			Tool:    tool,
			Args:    def.Args,
			Policy:  policy,
			Group:   def.Group,
			Timeout: time.Duration(def.TimeoutSeconds) * time.Second,
			Hint:    def.Hint,
		})
	}

	if collector.HasErrors() {
		return nil, fmt.Errorf("invalid manifest: %w", collector.Err())
	}
	return stages, nil
}

func compilePolicy(def StageDef) (pipeline.Policy, error) {
	policy := pipeline.Policy{
		PassCodes: def.Policy.PassCodes,
		WarnCodes: def.Policy.WarnCodes,
	}
	if def.Policy.WarnPattern != "" {
		re, err := regexp.Compile(def.Policy.WarnPattern)
		if err != nil {
			return pipeline.Policy{}, fmt.Errorf("stage %s: invalid warn_pattern: %w", def.ID, err)
		}
		policy.WarnPattern = re
	}
	if def.Policy.FailPattern != "" {
		re, err := regexp.Compile(def.Policy.FailPattern)
		if err != nil {
			return pipeline.Policy{}, fmt.Errorf("stage %s: invalid fail_pattern: %w", def.ID, err)
		}
		policy.FailPattern = re
	}
	return policy, nil
}
