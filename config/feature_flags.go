package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for the matching engine.
// Supports gradual rollout and candidate-based bucketing so that
// risky pipeline changes can be tried on part of a cohort first.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	candidateOverrides map[string]map[string]bool // candidateID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Candidates are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	CandidateID string
	IsAdmin     bool
}

// Predefined feature flag names.
const (
	// === Pipeline Features ===
	FeatureEngineExperiments  = "engine.experiments"   // Weight experiments per run
	FeatureEngineAutoAccept   = "engine.auto_accept"   // Auto-accept high-fit suggestions
	FeatureEngineGroupRuns    = "engine.group_runs"    // Group formation mode
	FeatureEngineVectorBoost  = "engine.vector_boost"  // Use precomputed trait vectors

	// === Suggestion Features ===
	FeatureSuggestionExpiry = "suggestion.expiry"       // Expire stale suggestions
	FeatureSuggestionSweep  = "suggestion.expiry_sweep" // Background expiry sweep job

	// === Cache Features ===
	FeatureCacheAssignments = "cache.assignments" // Redis cache for variant assignments
	FeatureCacheBlocklists  = "cache.blocklists"  // Redis cache for blocklists
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:           make(map[string]*Feature),
		candidateOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureEngineExperiments] = &Feature{
		Name:           FeatureEngineExperiments,
		Description:    "Resolve scoring weights from active experiments",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEngineAutoAccept] = &Feature{
		Name:           FeatureEngineAutoAccept,
		Description:    "Auto-accept suggestions above the fit threshold",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEngineGroupRuns] = &Feature{
		Name:           FeatureEngineGroupRuns,
		Description:    "Allow group formation runs",
		Enabled:        false, // Phase 2
		RolloutPercent: 0,
	}

	ff.features[FeatureEngineVectorBoost] = &Feature{
		Name:           FeatureEngineVectorBoost,
		Description:    "Prefer precomputed trait vectors over answers",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	ff.features[FeatureSuggestionExpiry] = &Feature{
		Name:           FeatureSuggestionExpiry,
		Description:    "Expire suggestions past their deadline",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSuggestionSweep] = &Feature{
		Name:           FeatureSuggestionSweep,
		Description:    "Background sweep that closes expired suggestions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCacheAssignments] = &Feature{
		Name:           FeatureCacheAssignments,
		Description:    "Cache experiment assignments in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCacheBlocklists] = &Feature{
		Name:           FeatureCacheBlocklists,
		Description:    "Cache blocklists in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_ENGINE_GROUP_RUNS=true
// Example: FEATURE_ENGINE_VECTOR_BOOST=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "engine.group_runs" -> "FEATURE_ENGINE_GROUP_RUNS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check candidate overrides first
	if ctx != nil && ctx.CandidateID != "" {
		if overrides, ok := ff.candidateOverrides[ctx.CandidateID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.CandidateID != "" {
		return ff.isInRollout(ctx.CandidateID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a candidate is in the rollout percentage.
// Uses consistent hashing so candidates stay in their bucket.
func (ff *FeatureFlags) isInRollout(candidateID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(candidateID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetCandidateOverride sets a feature override for a specific candidate.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetCandidateOverride(candidateID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.candidateOverrides[candidateID]; !ok {
		ff.candidateOverrides[candidateID] = make(map[string]bool)
	}
	ff.candidateOverrides[candidateID][featureName] = enabled
}

// ClearCandidateOverrides removes all overrides for a candidate.
func (ff *FeatureFlags) ClearCandidateOverrides(candidateID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.candidateOverrides, candidateID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
