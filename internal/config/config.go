// Package config resolves pipeline settings from defaults, an optional
// YAML file and STROKEPREP_* environment overrides, in that precedence
// order (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultFile is picked up from the working directory when no --config
// flag is given.
const DefaultFile = "strokeprep.yaml"

type Config struct {
	RawPath      string `yaml:"raw_path"`
	CleanPath    string `yaml:"clean_path"`
	IssuePath    string `yaml:"issue_path"`
	CohortPath   string `yaml:"cohort_path"`
	SiteCodePath string `yaml:"site_code_path"`
	FoldDir      string `yaml:"fold_dir"`
	ManifestPath string `yaml:"manifest_path"`

	YearCutoff      int   `yaml:"year_cutoff"`
	MinAdmissions   int   `yaml:"min_admissions"`
	MinThrombolysis int   `yaml:"min_thrombolysis"`
	ShuffleSeed     int64 `yaml:"shuffle_seed"`
	Folds           int   `yaml:"folds"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		RawPath:         "data/raw.csv",
		CleanPath:       "output/clean.csv",
		IssuePath:       "output/clean_issues.csv",
		CohortPath:      "output/cohort.csv",
		SiteCodePath:    "output/site_codes.csv",
		FoldDir:         "output/folds",
		ManifestPath:    "output/manifest.csv",
		YearCutoff:      2016,
		MinAdmissions:   250,
		MinThrombolysis: 10,
		ShuffleSeed:     42,
		Folds:           5,
	}
}

// Load resolves the configuration. A filePath given explicitly must
// exist; the default file is optional.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	explicit := filePath != ""
	if !explicit {
		filePath = DefaultFile
	}
	data, err := os.ReadFile(filePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// No config file; defaults plus environment apply.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.RawPath = getEnv("STROKEPREP_RAW_PATH", c.RawPath)
	c.CleanPath = getEnv("STROKEPREP_CLEAN_PATH", c.CleanPath)
	c.IssuePath = getEnv("STROKEPREP_ISSUE_PATH", c.IssuePath)
	c.CohortPath = getEnv("STROKEPREP_COHORT_PATH", c.CohortPath)
	c.SiteCodePath = getEnv("STROKEPREP_SITE_CODE_PATH", c.SiteCodePath)
	c.FoldDir = getEnv("STROKEPREP_FOLD_DIR", c.FoldDir)
	c.ManifestPath = getEnv("STROKEPREP_MANIFEST_PATH", c.ManifestPath)

	var err error
	if c.YearCutoff, err = getEnvAsInt("STROKEPREP_YEAR_CUTOFF", c.YearCutoff); err != nil {
		return err
	}
	if c.MinAdmissions, err = getEnvAsInt("STROKEPREP_MIN_ADMISSIONS", c.MinAdmissions); err != nil {
		return err
	}
	if c.MinThrombolysis, err = getEnvAsInt("STROKEPREP_MIN_THROMBOLYSIS", c.MinThrombolysis); err != nil {
		return err
	}
	if c.Folds, err = getEnvAsInt("STROKEPREP_FOLDS", c.Folds); err != nil {
		return err
	}
	seed, err := getEnvAsInt("STROKEPREP_SHUFFLE_SEED", int(c.ShuffleSeed))
	if err != nil {
		return err
	}
	c.ShuffleSeed = int64(seed)
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}
