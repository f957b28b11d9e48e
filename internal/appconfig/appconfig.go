// Package appconfig reads runtime settings from the app_config table, falling
// back to process configuration for values that are not stored.
package appconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/meililab/backend/internal/config"
	"github.com/meililab/backend/internal/gateway"
	"github.com/meililab/backend/internal/models"
)

var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid config value")
)

// Store is the key/value persistence behind the service.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

type kind int

const (
	kindPercent kind = iota
	kindToggle
	kindText
	kindSecret
)

var keys = map[string]kind{
	models.ConfigCommissionRate:               kindPercent,
	models.ConfigReferralPointsEnabled:        kindToggle,
	models.ConfigManualConfirmRequiresGateway: kindToggle,
	models.ConfigAlipayAppID:                  kindText,
	models.ConfigAlipayPrivateKey:             kindSecret,
	models.ConfigAlipayPublicKey:              kindText,
	models.ConfigAlipayGateway:                kindText,
	models.ConfigAlipayNotifyURL:              kindText,
}

type Service struct {
	store Store
	env   config.AlipayConfig
	log   *slog.Logger
}

func New(store Store, env config.AlipayConfig, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, env: env, log: log}
}

// CommissionRate returns the referral commission percentage. A missing or
// unparsable value yields the default rate; store failures are returned.
func (s *Service) CommissionRate(ctx context.Context) (decimal.Decimal, error) {
	def := decimal.NewFromInt(models.DefaultCommissionRate)
	raw, ok, err := s.store.Get(ctx, models.ConfigCommissionRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read commission rate: %w", err)
	}
	if !ok || raw == "" {
		return def, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		s.log.Warn("invalid commission rate in app_config, using default", "value", raw)
		return def, nil
	}
	return rate, nil
}

// Enabled reports whether a toggle is set to "true". Unreadable toggles are off.
func (s *Service) Enabled(ctx context.Context, key string) bool {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("read toggle failed", "key", key, "error", err)
		return false
	}
	return ok && raw == "true"
}

// Credentials merges stored gateway settings over the environment defaults.
func (s *Service) Credentials(ctx context.Context) (gateway.Credentials, error) {
	creds := gateway.Credentials{
		AppID:      s.env.AppID,
		PrivateKey: s.env.PrivateKey,
		PublicKey:  s.env.PublicKey,
		Gateway:    s.env.Gateway,
		NotifyURL:  s.env.NotifyURL,
		ReturnURL:  s.env.ReturnURL,
	}
	stored, err := s.store.All(ctx)
	if err != nil {
		return creds, fmt.Errorf("read gateway config: %w", err)
	}
	override := func(dst *string, key string) {
		if v := stored[key]; v != "" {
			*dst = v
		}
	}
	override(&creds.AppID, models.ConfigAlipayAppID)
	override(&creds.PrivateKey, models.ConfigAlipayPrivateKey)
	override(&creds.PublicKey, models.ConfigAlipayPublicKey)
	override(&creds.Gateway, models.ConfigAlipayGateway)
	override(&creds.NotifyURL, models.ConfigAlipayNotifyURL)
	return creds, nil
}

// All returns the stored settings with secrets masked.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(stored))
	for k, v := range stored {
		if keys[k] == kindSecret && v != "" {
			v = "********"
		}
		out[k] = v
	}
	return out, nil
}

// Set validates and stores one setting.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	s.log.Info("app config updated", "key", key)
	return nil
}

// Validate checks value against the rules for key.
func Validate(key, value string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	switch k {
	case kindPercent:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 100 {
			return fmt.Errorf("%w: %s must be an integer between 0 and 100", ErrInvalidValue, key)
		}
	case kindToggle:
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, key)
		}
	case kindSecret:
		if _, err := gateway.ParsePrivateKey(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
	}
	return nil
}
