package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/profile"
	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

func scoredProfile(id string, ls profile.Lifestyle, traits profile.Traits) *profile.Profile {
	vec := make([]float64, 4)
	vec[0] = 1
	return &profile.Profile{
		CandidateID: shared.CandidateID(id),
		Vector:      vec,
		Lifestyle:   ls,
		Traits:      traits,
	}
}

func TestScore_IdenticalProfiles(t *testing.T) {
	ls := profile.Lifestyle{
		SleepStart: 23, SleepEnd: 7,
		RoomCleanliness: 8, KitchenCleanliness: 8,
		NoiseTolerance: 5, GuestFrequency: 4, PartyFrequency: 2,
		StudyIntensity: 7, SocialLevel: 6,
	}
	traits := profile.Traits{Extraversion: 5, Agreeableness: 7, Conscientiousness: 8, Neuroticism: 3, Openness: 6}

	a := scoredProfile("a", ls, traits)
	b := scoredProfile("b", ls, traits)

	score, err := Score(a, b, DefaultWeightSet())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, score.Similarity, 1e-9)
	assert.InDelta(t, 1.0, score.ScheduleOverlap, 1e-9)
	assert.InDelta(t, 1.0, score.CleanlinessAlignment, 1e-9)
	assert.InDelta(t, 1.0, score.SocialAlignment, 1e-9)
	assert.Zero(t, score.Penalty)
	// Core weights sum to 1.0, so identical profiles score 1.0.
	assert.InDelta(t, 1.0, score.Composite.Float64(), 1e-9)
}

func TestScore_Symmetric(t *testing.T) {
	a := scoredProfile("a", profile.Lifestyle{SleepStart: 22, SleepEnd: 6, RoomCleanliness: 9, SocialLevel: 2}, profile.Traits{Extraversion: 2})
	b := scoredProfile("b", profile.Lifestyle{SleepStart: 1, SleepEnd: 9, RoomCleanliness: 3, SocialLevel: 8}, profile.Traits{Extraversion: 9})

	ab, err := Score(a, b, DefaultWeightSet())
	require.NoError(t, err)
	ba, err := Score(b, a, DefaultWeightSet())
	require.NoError(t, err)

	assert.Equal(t, ab.Composite, ba.Composite)
	assert.Equal(t, ab.ScheduleOverlap, ba.ScheduleOverlap)
	assert.Equal(t, ab.Penalty, ba.Penalty)
}

func TestScore_CompositeStaysInRange(t *testing.T) {
	a := scoredProfile("a", profile.Lifestyle{StudyIntensity: 10, SocialLevel: 10}, profile.Traits{Extraversion: 10, Agreeableness: 10, Conscientiousness: 10, Neuroticism: 10, Openness: 10})
	b := scoredProfile("b", profile.Lifestyle{}, profile.Traits{})

	score, err := Score(a, b, DefaultWeightSet())
	require.NoError(t, err)
	assert.True(t, score.Composite.IsValid())
}

func TestScore_DimensionMismatch(t *testing.T) {
	a := &profile.Profile{Vector: []float64{1, 0}}
	b := &profile.Profile{Vector: []float64{1, 0, 0}}

	_, err := Score(a, b, DefaultWeightSet())
	assert.ErrorIs(t, err, shared.ErrVectorDimensionMismatch)
}

func TestScheduleOverlap_MidnightWrap(t *testing.T) {
	// [23, 7) vs [0, 8): both 8h windows, shared 7h, overlap 7/8.
	a := profile.Lifestyle{SleepStart: 23, SleepEnd: 7}
	b := profile.Lifestyle{SleepStart: 0, SleepEnd: 8}

	assert.InDelta(t, 0.875, scheduleOverlap(a, b), 1e-9)
}

func TestScheduleOverlap_NoOverlap(t *testing.T) {
	a := profile.Lifestyle{SleepStart: 22, SleepEnd: 6}
	b := profile.Lifestyle{SleepStart: 8, SleepEnd: 16}

	assert.Zero(t, scheduleOverlap(a, b))
}

func TestScheduleOverlap_ZeroWindows(t *testing.T) {
	assert.Zero(t, scheduleOverlap(profile.Lifestyle{}, profile.Lifestyle{}))
}

func TestGapPenalty_Tiers(t *testing.T) {
	base := profile.Lifestyle{}

	// Study gap of 7 lands in the top tier.
	a := &profile.Profile{Lifestyle: profile.Lifestyle{StudyIntensity: 9}}
	b := &profile.Profile{Lifestyle: base}
	assert.InDelta(t, 0.15, gapPenalty(a, b), 1e-9)

	// Study gap of 4 lands in the mid tier.
	a = &profile.Profile{Lifestyle: profile.Lifestyle{StudyIntensity: 4}}
	assert.InDelta(t, 0.08, gapPenalty(a, b), 1e-9)

	// Everything maxed stays capped.
	a = &profile.Profile{
		Lifestyle: profile.Lifestyle{StudyIntensity: 10, SocialLevel: 10},
		Traits:    profile.Traits{Extraversion: 10, Agreeableness: 10, Conscientiousness: 10, Neuroticism: 10, Openness: 10},
	}
	assert.InDelta(t, 0.15+0.12+0.10, gapPenalty(a, b), 1e-9)
	assert.LessOrEqual(t, gapPenalty(a, b), maxTotalPenalty)
}

func TestAcademicBonus(t *testing.T) {
	w := DefaultWeightSet()

	a := profile.Academic{InstitutionID: "kbtu", ProgrammeID: "cs", Faculty: "fit"}
	b := profile.Academic{InstitutionID: "kbtu", ProgrammeID: "cs", Faculty: "fit"}

	// Programme bonus wins over faculty when both match.
	assert.InDelta(t, w.University+w.Programme, academicBonus(a, b, w), 1e-9)

	b.ProgrammeID = "se"
	assert.InDelta(t, w.University+w.Faculty, academicBonus(a, b, w), 1e-9)

	// Year gap beyond two years turns into a capped penalty.
	a = profile.Academic{GraduationYear: 2025}
	b = profile.Academic{GraduationYear: 2033}
	assert.InDelta(t, -maxYearPenalty, academicBonus(a, b, w), 1e-9)
}

func TestExplanation(t *testing.T) {
	ls := profile.Lifestyle{SleepStart: 23, SleepEnd: 7, RoomCleanliness: 8, KitchenCleanliness: 8}
	a := scoredProfile("a", ls, profile.Traits{})
	b := scoredProfile("b", ls, profile.Traits{})

	score, err := Score(a, b, DefaultWeightSet())
	require.NoError(t, err)

	assert.Equal(t, WatchOutNone, score.Explanation.WatchOut)
	assert.NotEmpty(t, score.Explanation.HouseRules)
}

func TestHouseRules_GenericFallback(t *testing.T) {
	score := PairScore{CleanlinessAlignment: 1, SocialAlignment: 1, ScheduleOverlap: 1}
	assert.Equal(t, []string{HintGeneric}, houseRules(score))
}

func TestWatchOut_Priority(t *testing.T) {
	a := &profile.Profile{}
	b := &profile.Profile{}

	// Penalty first.
	assert.Equal(t, WatchOutPreferences, watchOut(PairScore{Penalty: 0.2, CleanlinessAlignment: 0.1}, a, b))
	// Then cleanliness.
	assert.Equal(t, WatchOutCleanliness, watchOut(PairScore{CleanlinessAlignment: 0.1}, a, b))
	// Then schedule.
	assert.Equal(t, WatchOutSchedule, watchOut(PairScore{CleanlinessAlignment: 0.5, ScheduleOverlap: 0.1}, a, b))
}

func TestSectionScores(t *testing.T) {
	score := PairScore{Similarity: 0.7, ScheduleOverlap: 0.8, CleanlinessAlignment: 0.9, SocialAlignment: 0.6, AcademicBonus: 0.05}
	sections := score.SectionScores()

	assert.Equal(t, 0.7, sections["personality"])
	assert.Equal(t, 0.8, sections["schedule"])
	assert.Equal(t, 0.9, sections["cleanliness"])
	assert.Equal(t, 0.6, sections["social"])
	assert.Equal(t, 0.05, sections["academic"])
}

func TestWeightSetValidate(t *testing.T) {
	assert.NoError(t, DefaultWeightSet().Validate())

	w := DefaultWeightSet()
	w.Personality = -0.1
	assert.Error(t, w.Validate())

	w = DefaultWeightSet()
	w.Personality = 0.9
	assert.Error(t, w.Validate())

	w = DefaultWeightSet()
	w.Programme = 0.25
	assert.Error(t, w.Validate())
}
