package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages runtime toggles for optional bot behaviour.
// Every flag can be overridden with FEATURE_<NAME>=true|false.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeaturePredictionButton = "bot.prediction_button" // 📊 button under each new grade
	FeatureCommands         = "bot.commands"          // /prumer, /predikce
	FeatureAdminAlerts      = "notify.admin_alerts"   // failure reports to the admin chat
	FeatureDriftLog         = "poll.drift_log"        // debug log of edited grades
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeaturePredictionButton] = &Feature{
		Name:        FeaturePredictionButton,
		Description: "Attach a prediction button to new grade messages",
		Enabled:     true,
	}
	ff.features[FeatureCommands] = &Feature{
		Name:        FeatureCommands,
		Description: "Answer chat commands",
		Enabled:     true,
	}
	ff.features[FeatureAdminAlerts] = &Feature{
		Name:        FeatureAdminAlerts,
		Description: "Report validation failures to the admin chat",
		Enabled:     true,
	}
	ff.features[FeatureDriftLog] = &Feature{
		Name:        FeatureDriftLog,
		Description: "Log grades whose fields changed under a known id",
		Enabled:     false,
	}
}

// loadFromEnvironment applies FEATURE_<NAME> overrides.
// "bot.prediction_button" -> FEATURE_BOT_PREDICTION_BUTTON
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
		}
	}
}

func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled. Unknown features are disabled.
// A nil receiver means "all defaults", which keeps tests short.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	if ff == nil {
		return featureName != FeatureDriftLog
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// Set toggles a feature at runtime.
func (ff *FeatureFlags) Set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// Names returns all feature names, sorted.
func (ff *FeatureFlags) Names() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	names := make([]string, 0, len(ff.features))
	for name := range ff.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrFeatureNotFound is returned for unknown feature names.
var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
