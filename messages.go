package ablypush

import (
	"context"
	"net/http"
	"net/url"
)

const (
	PublishPath       = "/push/publish"
	RegistrationsPath = "/push/deviceRegistrations"

	// DeviceTokenHeader carries the update token on requests that modify an
	// existing registration.
	DeviceTokenHeader = "X-Ably-DeviceToken"
)

// Request is a single call against the REST API. Body, when set, is encoded
// as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   interface{}
}

// Response is the result of a successful (2xx) request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPExecutor performs authenticated requests against the service. A non-2xx
// response is returned as an error, normally an *ErrorInfo. Implementations
// must be safe for concurrent use.
type HTTPExecutor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// MakePublish builds the push publish request. The payload fields are sent
// at the top level of the body next to the recipient.
func MakePublish(recipient Recipient, payload map[string]interface{}) (*Request, error) {
	if len(recipient) == 0 {
		return nil, InvalidArgumentf("push recipient must not be empty")
	}
	if len(payload) == 0 {
		return nil, InvalidArgumentf("push payload must not be empty")
	}
	if _, ok := payload["recipient"]; ok {
		return nil, InvalidArgumentf("push payload must not contain a recipient field")
	}
	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["recipient"] = recipient
	return &Request{
		Method: http.MethodPost,
		Path:   PublishPath,
		Body:   body,
	}, nil
}

func MakeRegister(details *DeviceDetails) *Request {
	return &Request{
		Method: http.MethodPost,
		Path:   RegistrationsPath,
		Body:   details,
	}
}

func MakeUpdate(details *DeviceDetails, token UpdateToken) *Request {
	return &Request{
		Method: http.MethodPatch,
		Path:   registrationPath(details.ID),
		Header: tokenHeader(token),
		Body:   map[string]interface{}{"push": details.Push},
	}
}

func MakeDeregister(id DeviceID, token UpdateToken) *Request {
	return &Request{
		Method: http.MethodDelete,
		Path:   registrationPath(id),
		Header: tokenHeader(token),
	}
}

func registrationPath(id DeviceID) string {
	return RegistrationsPath + "/" + url.PathEscape(string(id))
}

func tokenHeader(token UpdateToken) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set(DeviceTokenHeader, string(token))
	}
	return h
}
