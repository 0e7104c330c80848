// Package pipeline wires the identifier, fetch and parse packages into the
// stages of the KO to reaction and compound pipeline.
package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/OFFIS-RIT/keggflow/internal/fetch"
	"github.com/OFFIS-RIT/keggflow/internal/kegg"
	"github.com/OFFIS-RIT/keggflow/internal/util"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

// Config holds the named settings of a pipeline run.
type Config struct {
	DataDir string `yaml:"data_dir" validate:"required"`
	// Supplement is an optional grouped CSV of extra reaction ids merged by
	// the unify stage.
	Supplement string `yaml:"supplement"`

	BaseURL    string        `yaml:"base_url" validate:"required,url"`
	BatchSize  int           `yaml:"batch_size" validate:"min=1,max=10"`
	Delay      time.Duration `yaml:"delay" validate:"gte=0"`
	MaxRetries int           `yaml:"max_retries" validate:"min=1"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`

	Debug bool `yaml:"debug"`
}

// ConfigFromEnv reads the configuration from the environment. Call
// util.LoadEnv first to pick up a .env file.
func ConfigFromEnv() Config {
	return Config{
		DataDir:    util.GetEnvString("DATA_DIR", "data"),
		Supplement: util.GetEnv("SUPPLEMENT_CSV"),
		BaseURL:    util.GetEnvString("KEGG_BASE_URL", kegg.DefaultBaseURL),
		BatchSize:  util.GetEnvInt("KEGG_BATCH_SIZE", fetch.DefaultBatchSize),
		Delay:      util.GetEnvDuration("KEGG_REQUEST_DELAY_MS", 500, time.Millisecond),
		MaxRetries: util.GetEnvInt("KEGG_MAX_RETRIES", kegg.DefaultMaxRetries),
		Timeout:    util.GetEnvDuration("KEGG_TIMEOUT_SECONDS", 30, time.Second),
		Debug:      util.GetEnvBool("DEBUG", false),
	}
}

// LoadConfig reads the environment and, when KEGGFLOW_CONFIG names a YAML
// file, overlays the keys set in that file.
func LoadConfig() (Config, error) {
	cfg := ConfigFromEnv()
	if path := util.GetEnv("KEGGFLOW_CONFIG"); path != "" {
		return LoadConfigFile(path, cfg)
	}
	return cfg, nil
}

// LoadConfigFile overlays the YAML file at path onto base. Keys missing from
// the file keep their base value. Durations are written like "500ms".
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks the configuration's constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Client builds the KEGG client described by c.
func (c Config) Client() *kegg.Client {
	return kegg.NewClient(kegg.NewClientParams{
		BaseURL:    c.BaseURL,
		Delay:      c.Delay,
		MaxRetries: c.MaxRetries,
		Timeout:    c.Timeout,
	})
}

// Layout returns the file layout under DataDir.
func (c Config) Layout() Layout {
	return NewLayout(c.DataDir, c.Supplement)
}
