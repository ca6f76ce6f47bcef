package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Error is a non-2xx response from the backend.
type Error struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsClientError reports whether the backend rejected the request (4xx),
// e.g. resolving an already resolved case or escalating past the limit.
func IsClientError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// Message returns the text a user should see for err: the backend's detail
// when there is one, the error string otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

const maxDetailLen = 200

// parseDetail extracts a human-readable message from an error body. The
// backend answers {"detail": "..."} for handled errors and
// {"detail": [{"msg": ...}, ...]} for request validation failures.
func parseDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, "detail")
		switch {
		case detail.IsArray():
			var msgs []string
			for _, item := range detail.Array() {
				msg := item.Get("msg").String()
				if loc := item.Get("loc").Array(); len(loc) > 0 {
					msg = loc[len(loc)-1].String() + ": " + msg
				}
				if msg != "" {
					msgs = append(msgs, msg)
				}
			}
			return truncate(strings.Join(msgs, "; "))
		case detail.Exists():
			return truncate(detail.String())
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

// truncate caps s at maxDetailLen runes.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxDetailLen {
		return s
	}
	return string(r[:maxDetailLen]) + "..."
}
