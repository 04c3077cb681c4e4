package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

func almatyProfile(id string, breakers ...profile.DealBreakerItem) *profile.Profile {
	return &profile.Profile{
		CandidateID:  shared.CandidateID(id),
		Location:     profile.Location{City: shared.NewCity("Almaty")},
		DealBreakers: breakers,
	}
}

func TestFilter_CompatiblePair(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := almatyProfile("a", profile.DealBreakerItem{ItemID: profile.KeySmoking, Value: profile.ValueNoSmoking})
	b := almatyProfile("b", profile.DealBreakerItem{ItemID: profile.KeySmoking, Value: profile.ValueNoSmoking})

	result := f.Check(a, b)
	assert.True(t, result.CanMatch)
	assert.Empty(t, result.Conflicts)
	assert.Contains(t, result.Reasons, "both in almaty")
}

func TestFilter_SmokingConflict(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := almatyProfile("a", profile.DealBreakerItem{ItemID: profile.KeySmoking, Value: profile.ValueNoSmoking})
	b := almatyProfile("b", profile.DealBreakerItem{ItemID: profile.KeySmoking, Value: profile.ValueSmokingOK})

	result := f.Check(a, b)
	assert.False(t, result.CanMatch)
	assert.Contains(t, result.Conflicts, "non-smoker vs smoker")
}

func TestFilter_Symmetric(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := almatyProfile("a", profile.DealBreakerItem{ItemID: profile.KeyQuietHours, Value: profile.ValueStrictQuietHours})
	b := almatyProfile("b", profile.DealBreakerItem{ItemID: profile.KeyQuietHours, Value: profile.ValueFrequentlyNoisy})

	assert.Equal(t, f.Check(a, b).CanMatch, f.Check(b, a).CanMatch)
	assert.Equal(t, f.Check(a, b).Conflicts, f.Check(b, a).Conflicts)
}

func TestFilter_UnansweredItemIsNeutral(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := almatyProfile("a", profile.DealBreakerItem{ItemID: profile.KeySmoking, Value: profile.ValueNoSmoking})
	b := almatyProfile("b")

	result := f.Check(a, b)
	assert.True(t, result.CanMatch)
}

func TestFilter_UnknownCombinationIsNeutral(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := almatyProfile("a", profile.DealBreakerItem{ItemID: profile.KeyParty, Value: profile.ValueNeverParty})
	b := almatyProfile("b", profile.DealBreakerItem{ItemID: profile.KeyParty, Value: profile.ValueRarelyParty})

	result := f.Check(a, b)
	assert.True(t, result.CanMatch)
}

func TestFilter_CrossCity(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := &profile.Profile{Location: profile.Location{City: shared.NewCity("Almaty")}}
	b := &profile.Profile{Location: profile.Location{City: shared.NewCity("Astana")}}

	result := f.Check(a, b)
	assert.False(t, result.CanMatch)
	assert.Contains(t, result.Conflicts, "different cities and not open to cross-city living")

	a.Location.OpenToCrossCity = true
	b.Location.OpenToCrossCity = true
	result = f.Check(a, b)
	assert.True(t, result.CanMatch)
	assert.Contains(t, result.Reasons, "both open to cross-city living")

	// One side willing is not enough.
	b.Location.OpenToCrossCity = false
	assert.False(t, f.Check(a, b).CanMatch)
}

func TestFilter_GraduationYearGap(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := almatyProfile("a")
	b := almatyProfile("b")
	a.Academic.GraduationYear = 2026
	b.Academic.GraduationYear = 2030

	result := f.Check(a, b)
	assert.False(t, result.CanMatch)
	assert.Contains(t, result.Conflicts, "graduation years are 4 years apart")

	b.Academic.GraduationYear = 2027
	result = f.Check(a, b)
	assert.True(t, result.CanMatch)
	assert.Contains(t, result.Reasons, "graduating around the same time")

	// Unknown years are neutral.
	b.Academic.GraduationYear = 0
	assert.True(t, f.Check(a, b).CanMatch)
}

func TestFilter_AcademicReasons(t *testing.T) {
	f := NewFilter(DefaultConflictRules())

	a := almatyProfile("a")
	b := almatyProfile("b")
	a.Academic.InstitutionID = "kbtu"
	b.Academic.InstitutionID = "kbtu"
	a.Academic.DegreeLevel = "bachelor"
	b.Academic.DegreeLevel = "bachelor"

	result := f.Check(a, b)
	assert.True(t, result.CanMatch)
	assert.Contains(t, result.Reasons, "same institution")
	assert.Contains(t, result.Reasons, "same degree level")
}
