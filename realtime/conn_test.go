package realtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csw/ablypush"
	"github.com/csw/ablypush/options"
)

const testKey = "xVLyHw.qvXXiA:secretsecret"

func TestConnectURLDefaults(t *testing.T) {
	o, err := options.NewWithKey(testKey)
	require.NoError(t, err)
	u, err := ConnectURL(o)
	require.NoError(t, err)
	assert.Equal(t, "wss", u.Scheme)
	assert.Equal(t, "realtime.ably.io:443", u.Host)
	q := u.Query()
	assert.Equal(t, testKey, q.Get("key"))
	assert.Equal(t, "json", q.Get("format"))
	assert.False(t, q.Has("echo"))
	assert.False(t, q.Has("resume"))
	assert.False(t, q.Has("recover"))
	assert.False(t, q.Has("access_token"))
}

func TestConnectURLParams(t *testing.T) {
	o, err := options.NewWithKey(testKey,
		options.WithEnvironment("sandbox"),
		options.WithClientID("bob"),
		options.WithBinary(true),
		options.WithEchoMessages(false),
		options.WithResumeKey("abc!def"),
		options.WithConnectionSerial(17),
		options.WithRecover("ignored:1"))
	require.NoError(t, err)
	u, err := ConnectURL(o)
	require.NoError(t, err)
	assert.Equal(t, "sandbox-realtime.ably.io:443", u.Host)
	q := u.Query()
	assert.Equal(t, "bob", q.Get("clientId"))
	assert.Equal(t, "msgpack", q.Get("format"))
	assert.Equal(t, "false", q.Get("echo"))
	assert.Equal(t, "abc!def", q.Get("resume"))
	assert.Equal(t, "17", q.Get("connectionSerial"))
	assert.False(t, q.Has("recover"))
}

func TestConnectURLRecover(t *testing.T) {
	o, err := options.New(options.WithToken("tok"), options.WithRecover("abc!def:5"),
		options.WithTLS(false))
	require.NoError(t, err)
	u, err := ConnectURL(o)
	require.NoError(t, err)
	assert.Equal(t, "ws", u.Scheme)
	assert.Equal(t, "realtime.ably.io:80", u.Host)
	q := u.Query()
	assert.Equal(t, "tok", q.Get("access_token"))
	assert.Equal(t, "abc!def:5", q.Get("recover"))
	assert.False(t, q.Has("key"))
}

func TestConnectURLNoCredentials(t *testing.T) {
	o, err := options.New()
	require.NoError(t, err)
	_, err = ConnectURL(o)
	assert.True(t, errors.Is(err, ablypush.ErrInvalidArgument))
}

func TestDial(t *testing.T) {
	upgrader := websocket.Upgrader{}
	queryCh := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queryCh <- r.URL.Query()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	o, err := options.NewWithKey(testKey, options.WithTLS(false),
		options.WithRealtimeHost(host), options.WithRealtimePort(port),
		options.WithResumeKey("rk"), options.WithConnectionSerial(3))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := Dial(ctx, o, nil)
	require.NoError(t, err)

	q := <-queryCh
	assert.Equal(t, testKey, q.Get("key"))
	assert.Equal(t, "rk", q.Get("resume"))
	assert.Equal(t, "3", q.Get("connectionSerial"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":0}`)))
	mt, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, `{"action":0}`, string(msg))

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestDialFailure(t *testing.T) {
	o, err := options.NewWithKey(testKey, options.WithTLS(false),
		options.WithRealtimeHost("127.0.0.1"), options.WithRealtimePort(1))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = Dial(ctx, o, nil)
	assert.Error(t, err)
}
