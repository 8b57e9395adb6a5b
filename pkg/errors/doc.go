// Package errors provides structured errors with codes for the account service.
//
// Every user-facing failure is an *Error carrying an ErrorCode, a message
// that is safe to show, optional details and the wrapped cause. Handlers map
// the code to an HTTP status with MapErrorCodeToHTTPStatus.
//
// # Basic Usage
//
//	import apperrors "github.com/pranavgnn/moodmeter/pkg/errors"
//
//	// Input problems carry the message shown next to the form
//	err := apperrors.InvalidInput("All fields are required")
//
//	// Wrap a store or provider failure
//	err := apperrors.Wrap(dbErr, apperrors.ErrCodeInternal, "Failed to create account")
//
//	// Attach details
//	err := apperrors.New(apperrors.ErrCodeConflict, "Username is already taken").
//		WithDetail("field", "username")
//
// # Inspecting errors
//
//	if apperrors.IsCode(err, apperrors.ErrCodeEmailNotVerified) {
//		...
//	}
//	status := apperrors.MapErrorCodeToHTTPStatus(apperrors.GetCode(err))
//	msg := apperrors.MessageOf(err, "Something went wrong")
//
// Unknown username, wrong password and store failures during login all
// become InvalidCredentials so callers cannot tell them apart.
package errors
