package rest

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csw/ablypush"
	"github.com/csw/ablypush/internal"
	"github.com/csw/ablypush/options"
	"github.com/csw/ablypush/push"
)

const testKey = "xVLyHw.qvXXiA:secretsecret"

// testOptions points plain-HTTP options at srv.
func testOptions(t *testing.T, srv *httptest.Server, extra ...options.Option) *options.ClientOptions {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	o, err := options.NewWithKey(testKey, append([]options.Option{
		options.WithTLS(false),
		options.WithRestHost(host),
		options.WithRestPort(port),
	}, extra...)...)
	require.NoError(t, err)
	return o
}

func TestExecutorRequiresCredentials(t *testing.T) {
	o, err := options.New()
	require.NoError(t, err)
	_, err = NewExecutor(o, nil)
	assert.True(t, errors.Is(err, ablypush.ErrInvalidArgument))
}

func TestExecutorBasicAuth(t *testing.T) {
	var got *http.Request
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	exec, err := NewExecutor(testOptions(t, srv, options.WithClientID("bob")), srv.Client())
	require.NoError(t, err)
	req, err := ablypush.MakePublish(ablypush.ClientRecipient("bob"), map[string]interface{}{"data": "x"})
	require.NoError(t, err)
	resp, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, ablypush.PublishPath, got.URL.Path)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(testKey)), got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("bob")), got.Header.Get("X-Ably-ClientId"))
	assert.JSONEq(t, `{"recipient": {"clientId": "bob"}, "data": "x"}`, string(body))
}

func TestExecutorTokenAuth(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	exec, err := NewExecutor(testOptions(t, srv, options.WithToken("tok")), srv.Client())
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), ablypush.MakeDeregister("dev", "upd"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+base64.StdEncoding.EncodeToString([]byte("tok")), auth)
}

func TestExecutorServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(internal.ExampleError)
	}))
	defer srv.Close()

	exec, err := NewExecutor(testOptions(t, srv), srv.Client())
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), ablypush.MakeDeregister("dev", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ablypush.ErrService))
	var info *ablypush.ErrorInfo
	require.True(t, errors.As(err, &info))
	assert.Equal(t, 40400, info.Code)
	assert.Equal(t, 404, info.StatusCode)
	assert.Equal(t, "Unable to find app with id = abc", info.Message)
}

func TestExecutorServiceErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	exec, err := NewExecutor(testOptions(t, srv), srv.Client())
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), ablypush.MakeDeregister("dev", ""))
	var info *ablypush.ErrorInfo
	require.True(t, errors.As(err, &info))
	assert.Equal(t, 50200, info.Code)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), info.Message)
}

func TestExecutorTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	o := testOptions(t, srv)
	srv.Close()

	exec, err := NewExecutor(o, &http.Client{Timeout: time.Second})
	require.NoError(t, err)
	_, err = exec.Execute(context.Background(), ablypush.MakeDeregister("dev", ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ablypush.ErrService))
	var info *ablypush.ErrorInfo
	require.True(t, errors.As(err, &info))
	assert.Equal(t, ablypush.CodeConnectionFailed, info.Code)
	assert.Contains(t, info.Message, "DELETE "+ablypush.RegistrationsPath+"/dev")
	var urlErr *url.Error
	assert.True(t, errors.As(err, &urlErr))
}

func TestExecutorCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	exec, err := NewExecutor(testOptions(t, srv), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exec.Execute(ctx, ablypush.MakeDeregister("dev", ""))
	assert.True(t, errors.Is(err, ablypush.ErrService))
	assert.True(t, errors.Is(err, context.Canceled))
}

type recordingDelegate struct {
	activateCh   chan error
	deactivateCh chan error
}

func (d *recordingDelegate) ActivateCallback(err error)   { d.activateCh <- err }
func (d *recordingDelegate) DeactivateCallback(err error) { d.deactivateCh <- err }

type tokenPlatform struct {
	push *push.Push
}

func (tp *tokenPlatform) Platform() string      { return "ios" }
func (tp *tokenPlatform) FormFactor() string    { return "phone" }
func (tp *tokenPlatform) TransportType() string { return "apns" }
func (tp *tokenPlatform) RequestToken() {
	tp.push.DidRegisterForRemoteNotifications([]byte{0xde, 0xad})
}

func TestClientActivateDeactivate(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(internal.ExampleRegistration)
		case http.MethodDelete:
			assert.Equal(t, "example-update-token", r.Header.Get(ablypush.DeviceTokenHeader))
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	d := &recordingDelegate{activateCh: make(chan error, 1), deactivateCh: make(chan error, 1)}
	pl := &tokenPlatform{}
	client, err := NewClient(testOptions(t, srv),
		WithHTTPClient(srv.Client()),
		WithPushOptions(push.WithDelegate(d), push.WithPlatform(pl)))
	require.NoError(t, err)
	defer client.Close()
	pl.push = client.Push()

	client.Push().Activate()
	select {
	case err := <-d.activateCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no activation callback")
	}
	client.Push().Deactivate()
	select {
	case err := <-d.deactivateCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no deactivation callback")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.Equal(t, "POST "+ablypush.RegistrationsPath, calls[0])
	assert.Contains(t, calls[1], "DELETE "+ablypush.RegistrationsPath+"/")
}
