package cmdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Method is an HTTP verb the table API client knows how to issue.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// requestBuilders maps each supported verb to its request constructor.
var requestBuilders = map[Method]func(ctx context.Context, uri string, body io.Reader) (*http.Request, error){
	MethodGet:    newRequest(http.MethodGet, false),
	MethodPost:   newRequest(http.MethodPost, true),
	MethodPut:    newRequest(http.MethodPut, true),
	MethodPatch:  newRequest(http.MethodPatch, true),
	MethodDelete: newRequest(http.MethodDelete, false),
}

func newRequest(verb string, hasBody bool) func(context.Context, string, io.Reader) (*http.Request, error) {
	return func(ctx context.Context, uri string, body io.Reader) (*http.Request, error) {
		if !hasBody {
			body = nil
		}
		return http.NewRequestWithContext(ctx, verb, uri, body)
	}
}

// ParseMethod resolves a verb name such as "Get" or "post" case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := requestBuilders[m]; !ok {
		return "", fmt.Errorf("unsupported http method: %s", s)
	}
	return m, nil
}

func buildRequest(ctx context.Context, method Method, uri string, body interface{}) (*http.Request, error) {
	builder, ok := requestBuilders[method]
	if !ok {
		return nil, fmt.Errorf("unsupported http method: %s", method)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := builder(ctx, uri, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
