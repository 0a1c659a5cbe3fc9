package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPlans_Success(t *testing.T) {
	path := writePlanFile(t, `
plans:
  - id: starter
    name: Starter
    amount: 2900
    currency: EUR
    interval: month
    trial_days: 14
  - id: pro
    name: Pro
    amount: 4900
    currency: EUR
    interval: month
    trial_days: 14
`)

	catalog, err := LoadPlans(path)
	require.NoError(t, err)

	pro, ok := catalog.Get("pro")
	require.True(t, ok)
	assert.Equal(t, "Pro", pro.Name)
	assert.Equal(t, int64(4900), pro.Amount)
	assert.Equal(t, 14, pro.TrialDays)

	all := catalog.All()
	require.Len(t, all, 2)
	assert.Equal(t, "pro", all[0].ID)
	assert.Equal(t, "starter", all[1].ID)
}

func TestLoadPlans_UnknownID(t *testing.T) {
	path := writePlanFile(t, `
plans:
  - id: starter
    name: Starter
    amount: 2900
    currency: EUR
    interval: month
`)

	catalog, err := LoadPlans(path)
	require.NoError(t, err)

	_, ok := catalog.Get("enterprise")
	assert.False(t, ok)
}

func TestLoadPlans_DuplicateID(t *testing.T) {
	path := writePlanFile(t, `
plans:
  - id: starter
    name: Starter
    amount: 2900
  - id: starter
    name: Starter Again
    amount: 3900
`)

	_, err := LoadPlans(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate plan id")
}

func TestLoadPlans_Empty(t *testing.T) {
	path := writePlanFile(t, `plans: []`)

	_, err := LoadPlans(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plans")
}

func TestLoadPlans_MissingFile(t *testing.T) {
	_, err := LoadPlans(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read plan catalog")
}
