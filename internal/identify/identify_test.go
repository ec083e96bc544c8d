package identify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmu/greenhouse/internal/plants"
)

var templates = []plants.TaskTemplate{
	{Key: "water", Label: "Water", DefaultFrequencyDays: 7},
	{Key: "mist", Label: "Mist", DefaultFrequencyDays: 3},
	{Key: "repot", Label: "Repot", DefaultFrequencyDays: 365},
}

func TestParseFencedAnswer(t *testing.T) {
	raw := "```json\n" + `{
  "species": "  Monstera deliciosa ",
  "common_name": "Swiss cheese plant",
  "confidence": 87,
  "care": {"light": " bright indirect "},
  "tasks": [
    {"task_key": "Water", "frequency_days": 7},
    {"task_key": "water", "frequency_days": 3},
    {"task_key": "dance", "frequency_days": 1},
    {"task_key": "repot", "frequency_days": 900},
    {"task_key": "mist", "frequency_days": 0}
  ],
  "alternatives": [
    {"species": "Monstera deliciosa", "confidence": 0.5},
    {"species": "Monstera adansonii", "confidence": 0.2},
    {"species": "Philodendron bipinnatifidum", "confidence": 0.1},
    {"species": "", "confidence": 0.1},
    {"species": "Rhaphidophora tetrasperma", "confidence": -3},
    {"species": "Epipremnum aureum", "confidence": 0.01}
  ]
}` + "\n```"

	id, err := Parse(raw, templates)
	require.NoError(t, err)

	assert.Equal(t, "Monstera deliciosa", id.Species)
	assert.InDelta(t, 0.87, id.Confidence, 1e-9)
	assert.Equal(t, "bright indirect", id.Care.Light)
	assert.Equal(t, []SuggestedTask{
		{TaskKey: "water", FrequencyDays: 7},
		{TaskKey: "repot", FrequencyDays: 365},
		{TaskKey: "mist", FrequencyDays: 1},
	}, id.Tasks)

	require.Len(t, id.Alternatives, 3)
	assert.Equal(t, "Monstera adansonii", id.Alternatives[0].Species)
	assert.Equal(t, "Rhaphidophora tetrasperma", id.Alternatives[2].Species)
	assert.Zero(t, id.Alternatives[2].Confidence)
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse("I think it is a fern.", templates)
	assert.ErrorIs(t, err, ErrNoAnswer)

	_, err = Parse("  ", templates)
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestSanitizeEmpty(t *testing.T) {
	id := Sanitize(Identification{}, templates)
	assert.NotNil(t, id.Tasks)
	assert.NotNil(t, id.Alternatives)
}

func TestConfidence(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.4, 0.4},
		{1, 1},
		{55, 0.55},
		{100, 1},
		{250, 1},
		{-0.2, 0},
		{math.NaN(), 0},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, confidence(c.in), 1e-9, "confidence(%v)", c.in)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}

func TestBuildPrompt(t *testing.T) {
	p, err := buildPrompt(templates)
	require.NoError(t, err)
	assert.Contains(t, p, "- water (Water, usually every 7 days)")
	assert.Contains(t, p, "- repot (Repot, usually every 365 days)")
}
