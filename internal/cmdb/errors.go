package cmdb

import "fmt"

// HTTPError is returned when the table API answers with a status >= 400.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}
