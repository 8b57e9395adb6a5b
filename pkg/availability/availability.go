// Package availability answers whether a username or email is free. Answers
// are advisory: signup repeats the lookup before it creates anything.
package availability

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/pranavgnn/moodmeter/pkg/metrics"
	"github.com/pranavgnn/moodmeter/pkg/profile"
	"github.com/pranavgnn/moodmeter/pkg/utils"
)

type Availability string

const (
	Available     Availability = "available"
	Taken         Availability = "taken"
	Indeterminate Availability = "indeterminate"
)

type Field string

const (
	FieldUsername Field = profile.FieldUsername
	FieldEmail    Field = profile.FieldEmail
)

type Checker struct {
	profiles profile.Repository
}

func NewChecker(profiles profile.Repository) *Checker {
	return &Checker{profiles: profiles}
}

// Check does a single profile lookup for candidate. Store failures and blank
// candidates are Indeterminate.
func (c *Checker) Check(ctx context.Context, field Field, candidate string) Availability {
	res := c.check(ctx, field, candidate)
	metrics.AvailabilityChecks.WithLabelValues(string(field), string(res)).Inc()
	return res
}

func (c *Checker) check(ctx context.Context, field Field, candidate string) Availability {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return Indeterminate
	}

	var err error
	switch field {
	case FieldUsername:
		_, err = c.profiles.GetByUsername(ctx, candidate)
	case FieldEmail:
		_, err = c.profiles.GetByEmail(ctx, profile.NormalizeEmail(candidate))
	default:
		return Indeterminate
	}

	switch {
	case err == nil:
		return Taken
	case errors.Is(err, profile.ErrNotFound):
		return Available
	default:
		slog.Warn("Availability lookup failed", "field", field, "value", mask(field, candidate), "err", err)
		return Indeterminate
	}
}

func mask(field Field, v string) string {
	if field == FieldEmail {
		return utils.MaskEmail(v)
	}
	return v
}
