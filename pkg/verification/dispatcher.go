package verification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pranavgnn/moodmeter/pkg/identity"
	"github.com/pranavgnn/moodmeter/pkg/metrics"
	"github.com/pranavgnn/moodmeter/pkg/reconcile"
)

const (
	ReasonExchangeFailed     = "exchange failed"
	ReasonVerificationFailed = "verification failed"
	ReasonNoMaterial         = "no verification material"

	CodeInvalidType = "invalid_type"
	CodeNoMaterial  = "no_verification_material"
)

// Outcome is the terminal result of a verification request.
type Outcome struct {
	Success bool

	// Set on success.
	Purpose identity.Purpose
	Next    string
	Session *identity.Session
	// Warning is set when the proof succeeded but the profile could not be
	// brought in sync. The outcome stays a success.
	Warning *reconcile.Warning

	// Set on failure.
	Reason    string
	ErrorCode string
}

func succeeded(purpose identity.Purpose, next string, session *identity.Session) Outcome {
	return Outcome{Success: true, Purpose: purpose, Next: next, Session: session}
}

func failed(reason, code string) Outcome {
	return Outcome{Reason: reason, ErrorCode: code}
}

// Reconciler is implemented by *reconcile.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID, email, proposedUsername string) reconcile.Result
}

// Dispatcher drives a verification request to one outcome. It makes at most
// one identity provider call and at most one reconcile per request, and the
// reconcile only starts after the proof has succeeded.
type Dispatcher struct {
	client     identity.Client
	reconciler Reconciler
}

func NewDispatcher(client identity.Client, reconciler Reconciler) *Dispatcher {
	return &Dispatcher{client: client, reconciler: reconciler}
}

func (d *Dispatcher) Verify(ctx context.Context, p Params) Outcome {
	req := Classify(p)
	out := d.verify(ctx, req)

	result := "success"
	if !out.Success {
		result = "failure"
	} else if out.Warning != nil {
		result = "success_with_warning"
	}
	metrics.VerificationOutcomes.WithLabelValues(req.Kind(), result).Inc()
	return out
}

func (d *Dispatcher) verify(ctx context.Context, req Request) Outcome {
	switch r := req.(type) {
	case ErrorReport:
		slog.Info("Verification link reported an error", "error_code", r.Code, "description", r.Description)
		return failed(r.Description, r.Code)

	case CodeFlow:
		session, err := d.client.ExchangeCode(ctx, r.Code, r.CodeVerifier)
		if err == nil && session == nil {
			err = &identity.Error{Code: identity.CodeProviderError, Message: "empty session"}
		}
		if err != nil {
			slog.Info("Code exchange failed", "error_code", identity.ErrorCode(err), "err", err)
			return failed(ReasonExchangeFailed, identity.ErrorCode(err))
		}
		out := succeeded(identity.PurposeContinuation, r.Next, session)
		// A code minted by a confirmation link comes back with the email
		// confirmed; mirror that locally like an email OTP.
		if session.User.EmailConfirmedAt != nil {
			out.Warning = d.reconcile(ctx, session)
		}
		return out

	case OtpFlow:
		purpose, ok := identity.ParseOTPPurpose(r.Type)
		if !ok {
			return failed(ReasonVerificationFailed, CodeInvalidType)
		}
		session, err := d.client.VerifyOTP(ctx, r.TokenHash, purpose)
		if err == nil && session == nil {
			err = &identity.Error{Code: identity.CodeProviderError, Message: "empty session"}
		}
		if err != nil {
			slog.Info("OTP verification failed", "type", purpose, "error_code", identity.ErrorCode(err), "err", err)
			return failed(ReasonVerificationFailed, identity.ErrorCode(err))
		}
		out := succeeded(purpose, r.Next, session)
		if purpose.ConfirmsEmail() {
			out.Warning = d.reconcile(ctx, session)
		}
		return out

	default:
		return failed(ReasonNoMaterial, CodeNoMaterial)
	}
}

func (d *Dispatcher) reconcile(ctx context.Context, session *identity.Session) *reconcile.Warning {
	if d.reconciler == nil {
		return nil
	}
	u := session.User
	return d.reconciler.Reconcile(ctx, u.ID, u.Email, u.Username()).Warning
}
