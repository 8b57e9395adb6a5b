// Package verification turns the parameters of an email link landing into a
// single verification outcome.
package verification

import (
	"net/url"
	"strings"
)

// Params are the raw inputs of a verification request. The error fields come
// from the redirect fragment, which the browser forwards because fragments
// never reach the server on their own.
type Params struct {
	Code             string `json:"code" form:"code"`
	TokenHash        string `json:"token_hash" form:"token_hash"`
	Type             string `json:"type" form:"type"`
	Next             string `json:"next" form:"next"`
	Error            string `json:"error" form:"error"`
	ErrorCode        string `json:"error_code" form:"error_code"`
	ErrorDescription string `json:"error_description" form:"error_description"`

	// CodeVerifier is the PKCE verifier of the browser that started signup.
	CodeVerifier string `json:"-"`
}

// Request is the classified form of Params: exactly one of ErrorReport,
// CodeFlow, OtpFlow or NoMaterial.
type Request interface {
	Kind() string
}

type ErrorReport struct {
	Code        string
	Description string
}

type CodeFlow struct {
	Code         string
	CodeVerifier string
	Next         string
}

type OtpFlow struct {
	TokenHash string
	Type      string
	Next      string
}

type NoMaterial struct{}

func (ErrorReport) Kind() string { return "error_report" }
func (CodeFlow) Kind() string    { return "code_flow" }
func (OtpFlow) Kind() string     { return "otp_flow" }
func (NoMaterial) Kind() string  { return "none" }

// Classify picks the request shape in priority order: a provider error
// report, then an authorization code, then a token hash with its type.
func Classify(p Params) Request {
	if p.Error != "" {
		code := p.ErrorCode
		if code == "" {
			code = p.Error
		}
		desc := p.ErrorDescription
		if desc == "" {
			desc = p.Error
		}
		return ErrorReport{Code: code, Description: desc}
	}
	if p.Code != "" {
		return CodeFlow{Code: p.Code, CodeVerifier: p.CodeVerifier, Next: SafeNext(p.Next)}
	}
	if p.TokenHash != "" && p.Type != "" {
		return OtpFlow{TokenHash: p.TokenHash, Type: p.Type, Next: SafeNext(p.Next)}
	}
	return NoMaterial{}
}

// SafeNext returns next when it is a local absolute path and "/" otherwise.
// Control characters are refused outright because browsers drop tabs and
// newlines from a Location value, which can turn "/\t/host" into "//host".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return "/"
	}
	for i := 0; i < len(next); i++ {
		if c := next[i]; c < 0x20 || c == 0x7f {
			return "/"
		}
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return next
}
