package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestLoadAppDefaults(t *testing.T) {
	app, err := loadApp(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", app.Port)
	assert.Equal(t, "durable", app.Store)
	assert.Equal(t, 0, app.Interview.QuestionCount)
	assert.Equal(t, 3, app.Interview.MaxGenerationAttempts)
	assert.Equal(t, 24*time.Hour, app.Interview.SessionMaxAge)
	assert.Equal(t, 15*time.Second, app.AI.ScoreTimeout)
	assert.Equal(t, 2, app.Analysis.Workers)
	assert.Equal(t, 3, app.Analysis.MaxRetries)
	assert.Equal(t, "redis", app.Analysis.Queue)
	assert.Equal(t, "authenticated", app.JWTAudience)
	assert.Empty(t, app.JWTIssuer)
}

func TestLoadAppOverrides(t *testing.T) {
	app, err := loadApp(envMap(map[string]string{
		"INTERVIEW_QUESTION_COUNT": "8",
		"ANALYSIS_QUEUE":           "MEMORY",
		"ANALYSIS_LEASE_TTL":       "90s",
		"AI_PROVIDER":              "vertex",
		"VERTEX_PROJECT_ID":        "proj",
	}))
	require.NoError(t, err)
	assert.Equal(t, 8, app.Interview.QuestionCount)
	assert.Equal(t, "memory", app.Analysis.Queue)
	assert.Equal(t, 90*time.Second, app.Analysis.LeaseTTL)
	assert.Equal(t, "vertex", app.AI.Provider)
}

func TestLoadAppCollectsErrors(t *testing.T) {
	_, err := loadApp(envMap(map[string]string{
		"INTERVIEW_QUESTION_COUNT":  "40",
		"ANALYSIS_WORKERS":          "many",
		"ANALYSIS_BACKOFF_BASE":     "soon",
		"ANALYSIS_DEFAULT_PRIORITY": "150",
		"AI_PROVIDER":               "vertex",
	}))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "INTERVIEW_QUESTION_COUNT")
	assert.Contains(t, msg, "ANALYSIS_WORKERS")
	assert.Contains(t, msg, "ANALYSIS_BACKOFF_BASE")
	assert.Contains(t, msg, "ANALYSIS_DEFAULT_PRIORITY")
	assert.Contains(t, msg, "VERTEX_PROJECT_ID")
}

func TestLoadAppReadsProcessEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "memory")
	app, err := LoadApp()
	require.NoError(t, err)
	assert.Equal(t, "9090", app.Port)
	assert.Equal(t, "memory", app.Store)
}
