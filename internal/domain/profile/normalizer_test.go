package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorm-hub/dorm-match-hub/internal/domain/shared"
)

const testCandidateID = shared.CandidateID("7ed99bd0-87b2-4dbb-a97b-596c3f29c49b")

func fullAnswers() RawAnswers {
	return RawAnswers{
		KeySleepStart:         "23:30",
		KeySleepEnd:           "07:00",
		KeyRoomCleanliness:    8,
		KeyKitchenCleanliness: 7,
		KeyNoiseTolerance:     "4",
		KeyGuestFrequency:     map[string]any{"value": 3},
		KeyPartyFrequency:     2,
		KeyStudyIntensity:     9,
		KeySocialLevel:        5,
		KeyTraitExtraversion:  6,
		KeyTraitAgreeableness: 7,
		KeyTraitConscientious: 8,
		KeyTraitNeuroticism:   3,
		KeyTraitOpenness:      7,
		KeySharedInterests:    []string{"board_games", "hiking"},
		KeyLanguages:          []any{"kazakh", "russian"},
		KeySmoking:            ValueNoSmoking,
		KeyPets:               ValueNoPets,
		KeyQuietHours:         ValueStrictQuietHours,
		KeyDegreeLevel:        "bachelor",
	}
}

func TestNormalize_FullAnswers(t *testing.T) {
	n := NewNormalizer(DefaultItemBank())

	p := n.Normalize(testCandidateID, fullAnswers(), Academic{DegreeLevel: "bachelor"}, Location{City: shared.NewCity("Almaty")})

	assert.Equal(t, testCandidateID, p.CandidateID)
	assert.True(t, p.HasVector())
	assert.Len(t, p.Vector, DefaultVectorDimension)

	// HH:MM answers become fractional hours.
	assert.InDelta(t, 23.5, p.Lifestyle.SleepStart, 1e-9)
	assert.InDelta(t, 7.0, p.Lifestyle.SleepEnd, 1e-9)

	// Scalars survive the usual wrapping variants.
	assert.Equal(t, 8.0, p.Lifestyle.RoomCleanliness)
	assert.Equal(t, 4.0, p.Lifestyle.NoiseTolerance)
	assert.Equal(t, 3.0, p.Lifestyle.GuestFrequency)

	assert.Equal(t, 6.0, p.Traits.Extraversion)
	assert.Equal(t, 3.0, p.Traits.Neuroticism)
}

func TestNormalize_VectorIsUnitLength(t *testing.T) {
	n := NewNormalizer(DefaultItemBank())

	p := n.Normalize(testCandidateID, fullAnswers(), Academic{}, Location{})

	var sum float64
	for _, v := range p.Vector {
		sum += v * v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestNormalize_EmptyAnswersGiveZeroVector(t *testing.T) {
	n := NewNormalizer(DefaultItemBank())

	p := n.Normalize(testCandidateID, RawAnswers{}, Academic{}, Location{})

	assert.False(t, p.HasVector())
	assert.Empty(t, p.DealBreakers)
}

func TestNormalize_BrokenValuesContributeNothing(t *testing.T) {
	n := NewNormalizer(DefaultItemBank())

	answers := RawAnswers{
		KeySleepStart:      "25:99",
		KeyRoomCleanliness: "not a number",
		KeyNoiseTolerance:  nil,
		"unknown_future":   7,
	}
	p := n.Normalize(testCandidateID, answers, Academic{}, Location{})

	assert.False(t, p.HasVector())
	assert.Zero(t, p.Lifestyle.SleepStart)
	assert.Zero(t, p.Lifestyle.RoomCleanliness)
}

func TestNormalize_ScalarsClampedToScale(t *testing.T) {
	n := NewNormalizer(DefaultItemBank())

	answers := RawAnswers{
		KeyRoomCleanliness: 15,
		KeyNoiseTolerance:  -3,
	}
	p := n.Normalize(testCandidateID, answers, Academic{}, Location{})

	assert.Equal(t, 10.0, p.Lifestyle.RoomCleanliness)
	assert.Equal(t, 0.0, p.Lifestyle.NoiseTolerance)
}

func TestNormalize_DealBreakersSortedByItemID(t *testing.T) {
	n := NewNormalizer(DefaultItemBank())

	p := n.Normalize(testCandidateID, fullAnswers(), Academic{}, Location{})

	require.Len(t, p.DealBreakers, 3)
	assert.Equal(t, KeyPets, p.DealBreakers[0].ItemID)
	assert.Equal(t, KeyQuietHours, p.DealBreakers[1].ItemID)
	assert.Equal(t, KeySmoking, p.DealBreakers[2].ItemID)

	val, ok := p.DealBreakerValue(KeySmoking)
	assert.True(t, ok)
	assert.Equal(t, ValueNoSmoking, val)
}

func TestParseAnswer_Forms(t *testing.T) {
	assert.Equal(t, AnswerEmpty, ParseAnswer(nil).Kind)
	assert.Equal(t, AnswerEmpty, ParseAnswer("   ").Kind)
	assert.Equal(t, AnswerEmpty, ParseAnswer(map[string]any{"other": 1}).Kind)
	assert.Equal(t, AnswerEmpty, ParseAnswer([]any{}).Kind)

	v := ParseAnswer("7.5")
	assert.Equal(t, AnswerScalar, v.Kind)
	assert.Equal(t, 7.5, v.Scalar)

	v = ParseAnswer(map[string]any{"value": float64(9)})
	assert.Equal(t, AnswerScalar, v.Kind)
	assert.Equal(t, 9.0, v.Scalar)

	v = ParseAnswer("no_smoking")
	assert.Equal(t, AnswerText, v.Kind)
	assert.Equal(t, "no_smoking", v.Text)

	v = ParseAnswer([]any{"a", "  ", "b"})
	assert.Equal(t, AnswerList, v.Kind)
	assert.Equal(t, []string{"a", "b"}, v.List)
	assert.True(t, v.Contains("B"))
	assert.False(t, v.Contains("c"))
}

func TestAsHourOfDay(t *testing.T) {
	cases := []struct {
		raw  any
		want float64
		ok   bool
	}{
		{"23:30", 23.5, true},
		{"07:00", 7.0, true},
		{"0:15", 0.25, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{float64(13), 13.0, true},
		{float64(24), 0, false},
		{float64(-1), 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAnswer(tc.raw).AsHourOfDay()
		assert.Equal(t, tc.ok, ok, "raw=%v", tc.raw)
		assert.InDelta(t, tc.want, got, 1e-9, "raw=%v", tc.raw)
	}
}

func TestAsText_FormatsScalars(t *testing.T) {
	text, ok := ParseAnswer(float64(3)).AsText()
	assert.True(t, ok)
	assert.Equal(t, "3", text)
}

func TestL2Normalize_ZeroVectorStaysZero(t *testing.T) {
	vec := make([]float64, 4)
	L2Normalize(vec)
	assert.Equal(t, []float64{0, 0, 0, 0}, vec)
}

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float64{1, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = Cosine([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = Cosine([]float64{1, 1}, []float64{0, 0})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = Cosine([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, shared.ErrVectorDimensionMismatch)
}

func TestEligibilityGate(t *testing.T) {
	gate := NewEligibilityGate(DefaultItemBank())

	assert.True(t, gate.IsEligible(fullAnswers()))

	partial := fullAnswers()
	delete(partial, KeySmoking)
	partial[KeySleepStart] = ""

	assert.False(t, gate.IsEligible(partial))
	missing := gate.MissingKeys(partial)
	assert.Contains(t, missing, KeySmoking)
	assert.Contains(t, missing, KeySleepStart)
}

func TestTraitsAverageGap(t *testing.T) {
	a := Traits{Extraversion: 8, Agreeableness: 6, Conscientiousness: 4, Neuroticism: 2, Openness: 10}
	b := Traits{Extraversion: 3, Agreeableness: 6, Conscientiousness: 9, Neuroticism: 2, Openness: 0}

	gap := a.AverageGap(b)
	assert.InDelta(t, (5.0+0+5+0+10)/5.0, gap, 1e-9)
	assert.Equal(t, gap, b.AverageGap(a))
}

func TestAcademicYearGap(t *testing.T) {
	a := Academic{GraduationYear: 2027}
	b := Academic{GraduationYear: 2025}
	assert.Equal(t, 2, a.YearGap(b))
	assert.Equal(t, 2, b.YearGap(a))

	unknown := Academic{}
	assert.Equal(t, 0, a.YearGap(unknown))
	assert.Equal(t, 0, unknown.YearGap(a))
}

func TestItemBankValidate(t *testing.T) {
	assert.NoError(t, DefaultItemBank().Validate())

	bad := DefaultItemBank()
	bad.VectorIndex[KeySleepStart] = bad.Dimension
	assert.Error(t, bad.Validate())

	assert.Error(t, ItemBank{Dimension: 0}.Validate())
}
