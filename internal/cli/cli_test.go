package cli

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaim-app/reclaim/internal/model"
)

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("short"))
	assert.Equal(t, "post****", mask("postgres://user:pw@db/reclaim"))
}

func TestRegisterDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	require.NoError(t, registerDefaults(model.DefaultConfig()))
	assert.Equal(t, 30, viper.GetInt("matching.min_match_score"))
	assert.Equal(t, 0.5, viper.GetFloat64("matching.weights.embedding"))
	assert.Equal(t, "memory", viper.GetString("store.driver"))

	viper.Set("claims.auto_award_threshold", 90)
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Claims.AutoAwardThreshold)
	assert.Equal(t, model.DefaultConfig().Claims.SimilarClaimsWindow, cfg.Claims.SimilarClaimsWindow)
}

func TestAnalyticsWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t.Cleanup(func() { analyticsDays, analyticsFrom, analyticsTo = 30, "", "" })

	analyticsDays = 7
	win, err := analyticsWindow(now)
	require.NoError(t, err)
	assert.Equal(t, now, win.To)
	assert.Equal(t, now.AddDate(0, 0, -7), win.From)

	analyticsFrom = "2024-01-01T00:00:00Z"
	win, err = analyticsWindow(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), win.From)
	assert.Equal(t, now, win.To)

	analyticsTo = "yesterday"
	_, err = analyticsWindow(now)
	assert.ErrorContains(t, err, "--to")
}
