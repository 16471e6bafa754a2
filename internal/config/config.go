// Package config centralises mpm's environment/flag-driven defaults:
// where the vault file lives, what thresholds a freshly created database
// gets when none are given explicitly, and a lockout policy for Try
// attempts. The lockout values are resolved and validated here only: the
// database's Try guard always uses lockout.DefaultPolicy, so they do not
// reach it. It follows the teacher's fail-fast validation style
// (secret_validation.go) and binds through viper so flags, environment
// variables and a config file all resolve to the same values.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"mpm/internal/apperr"
	"mpm/internal/lockout"
)

const (
	envPrefix = "MPM"

	defaultVaultPath       = "vault.mpm"
	defaultCommonThreshold = 2
	defaultSecretThreshold = 3
	defaultLockoutAttempts = 5
	defaultLockoutCooldown = 5 * time.Minute
	defaultLocale          = "en"
)

// Config is the resolved set of ambient defaults for one CLI invocation.
type Config struct {
	VaultPath       string
	CommonThreshold int
	SecretThreshold int
	Locale          string
	Lockout         lockout.Policy
}

// New builds a viper instance pre-seeded with mpm's defaults, bound to the
// MPM_* environment namespace. Callers bind cobra flags onto it before
// calling Resolve.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("vault", defaultVaultPath)
	v.SetDefault("common_threshold", defaultCommonThreshold)
	v.SetDefault("secret_threshold", defaultSecretThreshold)
	v.SetDefault("locale", defaultLocale)
	v.SetDefault("lockout_attempts", defaultLockoutAttempts)
	v.SetDefault("lockout_cooldown", defaultLockoutCooldown)
	return v
}

// Resolve validates v's current values and produces a Config, failing fast
// on anything the rest of mpm could not act on safely.
func Resolve(v *viper.Viper) (Config, error) {
	c := Config{
		VaultPath:       v.GetString("vault"),
		CommonThreshold: v.GetInt("common_threshold"),
		SecretThreshold: v.GetInt("secret_threshold"),
		Locale:          v.GetString("locale"),
		Lockout: lockout.Policy{
			MaxAttempts: v.GetInt("lockout_attempts"),
			Cooldown:    v.GetDuration("lockout_cooldown"),
		},
	}
	if c.VaultPath == "" {
		return Config{}, fmt.Errorf("%w: vault path must not be empty", apperr.ErrInvalidArg)
	}
	if c.CommonThreshold < 2 {
		return Config{}, fmt.Errorf("%w: common_threshold must be at least 2", apperr.ErrInvalidArg)
	}
	if c.SecretThreshold < 2 {
		return Config{}, fmt.Errorf("%w: secret_threshold must be at least 2", apperr.ErrInvalidArg)
	}
	if c.Lockout.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("%w: lockout_attempts must be at least 1", apperr.ErrInvalidArg)
	}
	return c, nil
}
