// Package reconcile brings the local profile in line with a user whose email
// the identity provider has just confirmed.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pranavgnn/moodmeter/pkg/metrics"
	"github.com/pranavgnn/moodmeter/pkg/profile"
)

type Outcome string

const (
	// Updated: an existing profile was marked verified.
	Updated Outcome = "updated"
	// Inserted: no profile existed; one was created already verified.
	Inserted Outcome = "inserted"
	// Raced: a concurrent reconcile created the profile first.
	Raced Outcome = "raced"
	// Warned: bookkeeping failed. The warning has been reported.
	Warned Outcome = "warning"
)

type Result struct {
	Outcome Outcome
	Warning *Warning
}

// OK reports whether the profile is known to be in sync.
func (r Result) OK() bool {
	return r.Warning == nil
}

type Reconciler struct {
	repo profile.Repository
	sink WarningSink
	now  func() time.Time
}

type Option func(*Reconciler)

func WithSink(sink WarningSink) Option {
	return func(r *Reconciler) { r.sink = sink }
}

func New(repo profile.Repository, opts ...Option) *Reconciler {
	r := &Reconciler{
		repo: repo,
		sink: LogSink{},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile marks the profile for userID as email-verified, creating it when
// missing. It never fails: store problems come back as a warning that has
// already been reported to the sink. Running it twice converges.
func (r *Reconciler) Reconcile(ctx context.Context, userID uuid.UUID, email, proposedUsername string) Result {
	_, err := r.repo.SetEmailVerified(ctx, userID, true)
	if err == nil {
		return r.done(Result{Outcome: Updated})
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return r.warn(ctx, WarningStoreError, userID, email, proposedUsername, err)
	}

	username := proposedUsername
	if username == "" {
		username = profile.NormalizeEmail(email)
	}

	_, err = r.repo.Insert(ctx, profile.Profile{
		ID:            userID,
		Username:      username,
		Email:         email,
		EmailVerified: true,
	})
	switch {
	case err == nil:
		return r.done(Result{Outcome: Inserted})
	case profile.IsConflict(err, profile.FieldID):
		slog.Info("Profile created concurrently", "user_id", userID)
		return r.done(Result{Outcome: Raced})
	case profile.IsConflict(err, ""):
		return r.warn(ctx, WarningProfileConflict, userID, email, username, err)
	default:
		return r.warn(ctx, WarningStoreError, userID, email, username, err)
	}
}

// Report sends a warning raised outside Reconcile, such as a failed profile
// pre-create at signup, through the same sink.
func (r *Reconciler) Report(ctx context.Context, kind string, userID uuid.UUID, email, username string, cause error) *Warning {
	res := r.warn(ctx, kind, userID, email, username, cause)
	return res.Warning
}

func (r *Reconciler) done(res Result) Result {
	metrics.ReconcileResults.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

func (r *Reconciler) warn(ctx context.Context, kind string, userID uuid.UUID, email, username string, cause error) Result {
	w := &Warning{
		Kind:     kind,
		UserID:   userID,
		Email:    email,
		Username: username,
		Detail:   cause.Error(),
		At:       r.now().UTC(),
	}
	if err := r.sink.Report(ctx, *w); err != nil {
		slog.Error("Failed to report reconcile warning", "kind", kind, "user_id", userID, "err", err)
	}
	return r.done(Result{Outcome: Warned, Warning: w})
}
