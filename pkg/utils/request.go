// Package utils holds request helpers shared by the HTTP handlers.
package utils

import (
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// MaxFormMemory bounds the in-memory part of a multipart form.
const MaxFormMemory = 1 << 20

// DecodeForm decodes a JSON, application/x-www-form-urlencoded or
// multipart/form-data body into dst. Form fields are matched against dst's
// json tags.
func DecodeForm(r *http.Request, dst any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(MaxFormMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		b, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	default:
		if err := render.DecodeJSON(r.Body, dst); err != nil {
			return fmt.Errorf("decode request body: %w", err)
		}
		return nil
	}
}

// ClientIP returns the remote address without its port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MaskEmail hides the local part for logging: "john@example.com" becomes
// "j***n@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 1 {
		return email
	}
	local := email[:at]
	if len(local) == 2 {
		return local[:1] + "*" + email[at:]
	}
	return local[:1] + "***" + local[len(local)-1:] + email[at:]
}
