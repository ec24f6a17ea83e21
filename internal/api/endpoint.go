// Package api is the HTTP client for the conversion backend. It attaches
// cached bearer tokens and refreshes them once per burst of 401 answers.
package api

import (
	"net/http"
	"time"
)

// ResponseType tells the client what kind of body an endpoint answers with.
type ResponseType int

const (
	ResponseJSON ResponseType = iota
	ResponseBinary
)

// Endpoint describes one backend route.
type Endpoint struct {
	Path    string
	Method  string
	Timeout time.Duration
	Headers map[string]string
	// RequireAuth marks the route as protected: a 401 may trigger a refresh.
	RequireAuth bool
	// NoAuthRetry disables the refresh-and-retry on 401 for protected routes.
	NoAuthRetry  bool
	ResponseType ResponseType
}

const (
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
	ContentTypeXLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	User = Endpoint{
		Path:        "/users",
		Method:      http.MethodGet,
		RequireAuth: true,
	}

	UploadExcel = Endpoint{
		Path:    "/api/excel/parse-to-json",
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": ContentTypeMultipart},
	}

	JSONToExcel = Endpoint{
		Path:         "/api/excel/json-to-excel",
		Method:       http.MethodPost,
		Headers:      map[string]string{"Content-Type": ContentTypeJSON},
		ResponseType: ResponseBinary,
	}
)
