package application

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	reconcile "mars-dashboards/internal/reconcile/domain"
)

// Config defines reconciliation configuration: tolerance profiles, the field
// selector rule table, the revenue account range, scheduling, and artifact
// storage.
type Config struct {
	Defaults reconcile.Tolerances            `yaml:"defaults"`
	Projects map[string]reconcile.Tolerances `yaml:"projects"`
	Rules    reconcile.RuleConfig            `yaml:"rules"`
	Accounts reconcile.AccountFilter         `yaml:"accounts"`
	Schedule ScheduleConfig                  `yaml:"schedule"`

	TopN        int    `yaml:"top_n"`
	StorageRoot string `yaml:"storage_root"`
}

// ScheduleConfig defines the daily run schedule.
type ScheduleConfig struct {
	DailyAt  string   `yaml:"daily_at"`
	Projects []string `yaml:"projects"`
}

// LoadConfig loads config from yaml or env. Omitted fields keep the working
// defaults so a bare deployment still reconciles sensibly.
func LoadConfig() (Config, error) {
	cfg := Config{
		Defaults:    reconcile.DefaultTolerances(),
		Rules:       reconcile.DefaultRuleConfig(),
		Accounts:    reconcile.DefaultAccountFilter(),
		TopN:        10,
		StorageRoot: getenvDefault("RECONCILE_STORAGE_ROOT", filepath.FromSlash("var/reports/reconcile")),
	}

	if path := os.Getenv("RECONCILE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Rules.Epsilon == 0 {
		cfg.Rules = mergeRules(reconcile.DefaultRuleConfig(), cfg.Rules)
	}
	if len(cfg.Accounts.RevenuePrefixes) == 0 {
		cfg.Accounts = reconcile.DefaultAccountFilter()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = getenvIntDefault("RECONCILE_TOP_N", 10)
	}
	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = getenvDefault("RECONCILE_DAILY_AT", "02:00")
	}
	if len(cfg.Schedule.Projects) == 0 {
		cfg.Schedule.Projects = splitCSV(getenvDefault("RECONCILE_PROJECTS", ""))
	}
	if cfg.StorageRoot == "" {
		return cfg, errors.New("reconcile: storage root required")
	}
	return cfg, nil
}

// TolerancesForProject returns the tolerance profile for a project,
// overlaying any per-project override on the defaults.
func (c Config) TolerancesForProject(project string) reconcile.Tolerances {
	if c.Projects != nil {
		if override, ok := c.Projects[project]; ok {
			return c.Defaults.Merge(override)
		}
	}
	return c.Defaults
}

func mergeRules(base, override reconcile.RuleConfig) reconcile.RuleConfig {
	if override.Epsilon != 0 {
		base.Epsilon = override.Epsilon
	}
	if len(override.QuantityCarriesCost) != 0 {
		base.QuantityCarriesCost = override.QuantityCarriesCost
	}
	if len(override.UnitCostItems) != 0 {
		base.UnitCostItems = override.UnitCostItems
	}
	return base
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
