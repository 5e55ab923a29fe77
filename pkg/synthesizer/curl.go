package synthesizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// apiRequest is the JSON shape an api-kind action's content may carry.
type apiRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// CurlCommand derives a curl-equivalent command string from an api action's
// substituted content, for display only. The second return value is false
// when the content does not parse as a JSON request object; callers skip
// the derivation in that case and show the content as-is.
func CurlCommand(substituted, fallbackMethod string) (string, bool) {
	var req apiRequest

	err := json.Unmarshal([]byte(substituted), &req)
	if err != nil || req.URL == "" {
		return "", false
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = strings.ToUpper(fallbackMethod)
	}

	if method == "" {
		method = "GET"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "curl -X %s '%s'", method, req.URL)

	headerNames := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		headerNames = append(headerNames, name)
	}

	sort.Strings(headerNames)

	for _, name := range headerNames {
		fmt.Fprintf(&b, " -H '%s: %s'", name, req.Headers[name])
	}

	if len(req.Body) > 0 && string(req.Body) != "null" {
		fmt.Fprintf(&b, " -d '%s'", string(req.Body))
	}

	return b.String(), true
}
