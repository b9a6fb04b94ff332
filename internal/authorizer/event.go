package authorizer

import (
	"strconv"
	"strings"
)

// Event is the Lambda@Edge viewer-request event.
type Event struct {
	Records []Record `json:"Records"`
}

type Record struct {
	CF CloudFront `json:"cf"`
}

type CloudFront struct {
	Config  EventConfig `json:"config"`
	Request Request     `json:"request"`
}

type EventConfig struct {
	DistributionDomainName string `json:"distributionDomainName"`
	DistributionID         string `json:"distributionId"`
	EventType              string `json:"eventType"`
	RequestID              string `json:"requestId"`
}

// Request is the viewer request carried by the event.
type Request struct {
	ClientIP    string  `json:"clientIp"`
	Method      string  `json:"method"`
	URI         string  `json:"uri"`
	QueryString string  `json:"querystring"`
	Headers     Headers `json:"headers"`
}

// Headers are keyed by lowercase header name.
type Headers map[string][]Header

type Header struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

// Get returns the first value of name, or "".
func (h Headers) Get(name string) string {
	vs := h[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Value
}

// Add appends a value under the lowercase form of key.
func (h Headers) Add(key, value string) {
	lk := strings.ToLower(key)
	h[lk] = append(h[lk], Header{Key: key, Value: value})
}

// Set replaces all values of key.
func (h Headers) Set(key, value string) {
	h[strings.ToLower(key)] = []Header{{Key: key, Value: value}}
}

// Response is the generated response CloudFront returns to the viewer.
type Response struct {
	Status            string  `json:"status"`
	StatusDescription string  `json:"statusDescription,omitempty"`
	Headers           Headers `json:"headers,omitempty"`
	Body              string  `json:"body,omitempty"`
	BodyEncoding      string  `json:"bodyEncoding,omitempty"`
}

// StatusCode parses Status, returning 0 when it is not numeric.
func (r *Response) StatusCode() int {
	n, _ := strconv.Atoi(r.Status)
	return n
}
