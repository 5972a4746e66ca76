package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/csw/ablypush"
	"github.com/csw/ablypush/options"
)

const (
	apiVersion     = "1.2"
	defaultTimeout = 15 * time.Second
	// Error bodies larger than this are not decoded.
	maxErrorBody = 64 * 1024
)

// Executor is the default ablypush.HTTPExecutor. It sends JSON requests to
// the REST host from the client options and authenticates them with the
// configured key or token.
type Executor struct {
	opts   *options.ClientOptions
	client *http.Client
	log    *log.Entry
}

var _ ablypush.HTTPExecutor = (*Executor)(nil)

// NewExecutor returns an executor for opts. A nil httpClient gets a client
// with a 15s timeout.
func NewExecutor(opts *options.ClientOptions, httpClient *http.Client) (*Executor, error) {
	if opts == nil {
		return nil, ablypush.InvalidArgumentf("client options must not be nil")
	}
	if !opts.Auth().HasCredentials() {
		return nil, ablypush.NoCredentialsError()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Executor{
		opts:   opts,
		client: httpClient,
		log:    log.WithField("host", opts.RestHost()),
	}, nil
}

func (e *Executor) authorization() string {
	auth := e.opts.Auth()
	if auth.UseTokenAuth || auth.Key == "" {
		return "Bearer " + base64.StdEncoding.EncodeToString([]byte(auth.Token))
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth.Key))
}

func (e *Executor) Execute(ctx context.Context, req *ablypush.Request) (*ablypush.Response, error) {
	u := e.opts.RestURL()
	u.Path = req.Path
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		enc, err := json.Marshal(req.Body)
		if err != nil {
			return nil, ablypush.InvalidArgumentf("encoding request body: %v", err)
		}
		body = bytes.NewReader(enc)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Authorization", e.authorization())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Ably-Version", apiVersion)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := e.opts.ClientID(); id != "" && !e.opts.Auth().UseTokenAuth {
		httpReq.Header.Set("X-Ably-ClientId", base64.StdEncoding.EncodeToString([]byte(id)))
	}

	rlog := e.log.WithFields(log.Fields{"method": req.Method, "path": req.Path})
	rlog.Debug("Sending request")
	resp, err := e.client.Do(httpReq)
	if err != nil {
		rlog.WithError(err).Warn("Request failed")
		return nil, ablypush.TransportError(errors.Wrapf(err, "%s %s", req.Method, req.Path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		info := decodeError(resp)
		rlog.WithField("status", resp.StatusCode).WithError(info).Warn("Service returned an error")
		return nil, info
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ablypush.TransportError(errors.Wrap(err, "reading response body"))
	}
	return &ablypush.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       raw,
	}, nil
}

func decodeError(resp *http.Response) *ablypush.ErrorInfo {
	var envelope struct {
		Error *ablypush.ErrorInfo `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		if envelope.Error.StatusCode == 0 {
			envelope.Error.StatusCode = resp.StatusCode
		}
		return ablypush.AsServiceError(envelope.Error)
	}
	return ablypush.ServiceError(0, resp.StatusCode, http.StatusText(resp.StatusCode))
}
