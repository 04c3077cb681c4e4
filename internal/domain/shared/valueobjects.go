// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages.
package shared

import (
	"math"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// CandidateID represents a unique candidate identifier (UUID format).
type CandidateID string

// IsValid checks if the candidate ID is a valid UUID.
func (c CandidateID) IsValid() bool {
	return uuidRegex.MatchString(string(c))
}

// String returns the string representation.
func (c CandidateID) String() string {
	return string(c)
}

// IsEmpty checks if the ID is empty.
func (c CandidateID) IsEmpty() bool {
	return c == ""
}

// NewCandidateID creates a new CandidateID with validation.
func NewCandidateID(id string) (CandidateID, error) {
	cid := CandidateID(strings.ToLower(strings.TrimSpace(id)))
	if !cid.IsValid() {
		return "", ErrInvalidCandidateID
	}
	return cid, nil
}

// RunID represents a unique matching run identifier (UUID format).
type RunID string

// IsValid checks if the run ID is a valid UUID.
func (r RunID) IsValid() bool {
	return uuidRegex.MatchString(string(r))
}

// String returns the string representation.
func (r RunID) String() string {
	return string(r)
}

// ═══════════════════════════════════════════════════════════════════════════
// Fit Score Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// FitScore представляет итоговую оценку совместимости пары (0.0 - 1.0).
type FitScore float64

// IsValid проверяет, что оценка в допустимом диапазоне.
func (f FitScore) IsValid() bool {
	return f >= 0 && f <= 1
}

// Clamp обрезает оценку до диапазона [0, 1].
func (f FitScore) Clamp() FitScore {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Index возвращает целочисленный индекс совместимости (0-100).
func (f FitScore) Index() FitIndex {
	return FitIndex(math.Round(float64(f.Clamp()) * 100))
}

// Float64 returns the underlying float64 value.
func (f FitScore) Float64() float64 {
	return float64(f)
}

// FitIndex представляет оценку совместимости в целых процентах (0-100).
type FitIndex int

// IsValid проверяет корректность индекса.
func (i FitIndex) IsValid() bool {
	return i >= 0 && i <= 100
}

// Quality возвращает качественную оценку совместимости.
func (i FitIndex) Quality() MatchQuality {
	switch {
	case i >= 80:
		return MatchQualityExcellent
	case i >= 60:
		return MatchQualityGood
	case i >= 40:
		return MatchQualityFair
	case i >= 20:
		return MatchQualityPoor
	default:
		return MatchQualityNone
	}
}

// MatchQuality определяет качество подбора.
type MatchQuality string

const (
	// MatchQualityExcellent - отличная совместимость (80-100).
	MatchQualityExcellent MatchQuality = "excellent"

	// MatchQualityGood - хорошая совместимость (60-79).
	MatchQualityGood MatchQuality = "good"

	// MatchQualityFair - удовлетворительная совместимость (40-59).
	MatchQualityFair MatchQuality = "fair"

	// MatchQualityPoor - низкая совместимость (20-39).
	MatchQualityPoor MatchQuality = "poor"

	// MatchQualityNone - нет совместимости (0-19).
	MatchQualityNone MatchQuality = "none"
)

// ═══════════════════════════════════════════════════════════════════════════
// Location Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// City represents a normalized city name.
type City string

// NewCity creates a normalized City (lowercase, trimmed).
func NewCity(name string) City {
	return City(strings.ToLower(strings.TrimSpace(name)))
}

// IsEmpty checks if the city is unset.
func (c City) IsEmpty() bool {
	return c == ""
}

// String returns the string representation.
func (c City) String() string {
	return string(c)
}

// Equals compares two cities case-insensitively.
func (c City) Equals(other City) bool {
	return strings.EqualFold(string(c), string(other))
}

// ═══════════════════════════════════════════════════════════════════════════
// Math Helpers
// ═══════════════════════════════════════════════════════════════════════════

// Clamp01 обрезает значение до диапазона [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
