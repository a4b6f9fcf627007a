package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FallbackLocation is used when no configured zone can be loaded.
var FallbackLocation = time.FixedZone("UTC+8", 8*60*60)

// ProfileTimezones reads the timezone saved on a user's profile.
type ProfileTimezones interface {
	Timezone(ctx context.Context, userID string) (string, error)
}

// TimezoneResolver picks the zone used to render timestamps for a caller:
// explicit header, then profile, then the configured default.
type TimezoneResolver struct {
	profiles ProfileTimezones
	fallback *time.Location
	logger   *zap.Logger
}

// NewTimezoneResolver creates a resolver. profiles may be nil.
func NewTimezoneResolver(profiles ProfileTimezones, defaultZone string, logger *zap.Logger) *TimezoneResolver {
	logger = logger.Named("timezone_resolver")
	fallback := FallbackLocation
	if loc, err := time.LoadLocation(strings.TrimSpace(defaultZone)); err == nil && defaultZone != "" {
		fallback = loc
	} else if defaultZone != "" {
		logger.Warn("invalid default timezone, using UTC+8", zap.String("timezone", defaultZone), zap.Error(err))
	}
	return &TimezoneResolver{profiles: profiles, fallback: fallback, logger: logger}
}

// Resolve returns the caller's location. It never fails; a nil resolver
// yields FallbackLocation.
func (r *TimezoneResolver) Resolve(ctx context.Context, userID, header string) *time.Location {
	if r == nil {
		return FallbackLocation
	}
	if header = strings.TrimSpace(header); header != "" {
		if loc, err := time.LoadLocation(header); err == nil {
			return loc
		}
		r.logger.Warn("invalid timezone header", zap.String("timezone", header))
	}

	if r.profiles != nil && userID != "" {
		zone, err := r.profiles.Timezone(ctx, userID)
		if err == nil && zone != "" {
			if loc, err := time.LoadLocation(zone); err == nil {
				return loc
			}
			r.logger.Warn("invalid profile timezone", zap.String("timezone", zone))
		}
	}
	return r.fallback
}
