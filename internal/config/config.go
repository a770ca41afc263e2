package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models siteline.yml.
type Config struct {
	Project struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Classifier struct {
		Preparation  []string `yaml:"preparation"`
		Verification []string `yaml:"verification"`
	} `yaml:"classifier"`
	Categories []CategoryRule `yaml:"categories"`
	Phases     struct {
		Weights struct {
			Preparation  int `yaml:"preparation"`
			Execution    int `yaml:"execution"`
			Verification int `yaml:"verification"`
		} `yaml:"weights"`
	} `yaml:"phases"`
	Reschedule struct {
		MinDayWidth int `yaml:"min_day_width"`
		MaxDayWidth int `yaml:"max_day_width"`
	} `yaml:"reschedule"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// CategoryRule is one (category, keywords) pair. Rules are evaluated in
// list order; the first matching category wins.
type CategoryRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with sl project config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if len(c.Classifier.Preparation) == 0 {
		return fmt.Errorf("config.classifier.preparation is required")
	}
	if len(c.Classifier.Verification) == 0 {
		return fmt.Errorf("config.classifier.verification is required")
	}
	for _, kw := range c.Classifier.Preparation {
		if kw == "" {
			return fmt.Errorf("classifier.preparation contains empty keyword")
		}
	}
	for _, kw := range c.Classifier.Verification {
		if kw == "" {
			return fmt.Errorf("classifier.verification contains empty keyword")
		}
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("config.categories is required")
	}
	seen := map[string]bool{}
	for _, rule := range c.Categories {
		if rule.Category == "" {
			return fmt.Errorf("config.categories contains empty category name")
		}
		if seen[rule.Category] {
			return fmt.Errorf("category %s listed twice", rule.Category)
		}
		seen[rule.Category] = true
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("category %s has no keywords", rule.Category)
		}
		for _, kw := range rule.Keywords {
			if kw == "" {
				return fmt.Errorf("category %s has empty keyword", rule.Category)
			}
		}
	}
	w := c.Phases.Weights
	if w.Preparation+w.Execution+w.Verification != 100 {
		return fmt.Errorf("phase weights must sum to 100, got %d", w.Preparation+w.Execution+w.Verification)
	}
	if c.Reschedule.MinDayWidth <= 0 {
		return fmt.Errorf("reschedule.min_day_width must be positive")
	}
	if c.Reschedule.MaxDayWidth < c.Reschedule.MinDayWidth {
		return fmt.Errorf("reschedule.max_day_width must be >= min_day_width")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhooks[%d] has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "siteline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	cfg.Project.ID = projectID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ToYAML serializes a config for storage.
func ToYAML(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  id: %s
  name: ""

classifier:
  preparation:
    - order
    - deliver
    - measure
    - prep
    - plan
    - schedule
    - permit
    - survey
    - quote
    - buy
    - purchase
    - setup
    - protect
    - tape
    - drop cloth
    - primer
    - sand
  verification:
    - inspect
    - verify
    - test
    - final
    - clean
    - review
    - check
    - approve
    - sign off
    - touch up
    - punch list

categories:
  - category: flooring
    keywords: [laminate flooring, hardwood flooring, vinyl flooring, tile, carpet]
  - category: underlayment
    keywords: [underlayment, vapor barrier, padding]
  - category: trim
    keywords: [baseboard, molding, transition strips, quarter round]
  - category: supplies
    keywords: [adhesive, nails, screws, spacers]

phases:
  weights:
    preparation: 40
    execution: 40
    verification: 20

reschedule:
  min_day_width: 20
  max_day_width: 120
`
