package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLoadsAllKinds(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, []string{Questions, Report, Score}, m.Kinds())
}

func TestManagerBuild(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	out, err := m.Build(Questions, "en", map[string]string{
		"TargetJob": "Backend Engineer",
		"Count":     "5",
		"Skills":    "",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Backend Engineer")
	assert.Contains(t, out, "exactly 5 interview questions")
	assert.Contains(t, out, "Skills: -")
	assert.Contains(t, out, "English")
}

func TestManagerBuildLanguageFallback(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	id, err := m.Build(Score, "id", nil)
	require.NoError(t, err)
	assert.Contains(t, id, "Bahasa Indonesia")

	fr, err := m.Build(Score, "fr", nil)
	require.NoError(t, err)
	assert.Contains(t, fr, "English")
}

func TestManagerBuildUnknownKind(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	_, err = m.Build("explain", "en", nil)
	assert.Error(t, err)
}
