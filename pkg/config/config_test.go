package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(overrides map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := fromViper(newTestViper(nil))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 32, cfg.Auth.TokenLength)
	assert.Equal(t, 10, cfg.Auth.MaxIssueAttempts)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Assets.SignedURLTTL)
	assert.Equal(t, int64(64*1024*1024), cfg.Assets.MaxContentBytes)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperInvalidDurationFallsBack(t *testing.T) {
	cfg, err := fromViper(newTestViper(map[string]interface{}{"TOKEN_TTL": "soon"}))
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
}

func TestFromViperProductionRequiresSecrets(t *testing.T) {
	_, err := fromViper(newTestViper(map[string]interface{}{"ENV": EnvProduction}))
	require.Error(t, err)

	cfg, err := fromViper(newTestViper(map[string]interface{}{
		"ENV":                      EnvProduction,
		"ID_OBFUSCATION_SECRET":    "prod-obfuscation",
		"ASSETS_SIGNED_URL_SECRET": "prod-signing",
	}))
	require.NoError(t, err)
	assert.Equal(t, "prod-obfuscation", cfg.Obfuscation.Secret)
}

func TestFromViperRejectsExcessiveBcryptCost(t *testing.T) {
	_, err := fromViper(newTestViper(map[string]interface{}{"BCRYPT_COST": 31}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")

	cfg, err := fromViper(newTestViper(map[string]interface{}{"BCRYPT_COST": MaxBcryptCost}))
	require.NoError(t, err)
	assert.Equal(t, MaxBcryptCost, cfg.Auth.BcryptCost)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, splitAndTrim(" http://a.test, ,http://b.test "))
}
