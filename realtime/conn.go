// Keepalive handling adapted from:
// Copyright 2013 The Gorilla WebSocket Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package realtime opens websocket connections to the realtime endpoint
// described by ClientOptions. It handles keepalive only; protocol messages
// are left to the caller.
package realtime

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/csw/ablypush"
	"github.com/csw/ablypush/options"
)

const (
	protocolVersion = "1.2"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// ConnectURL returns the realtime URL for opts, carrying credentials and
// connection parameters in the query. Resume and recover values are passed
// through verbatim.
func ConnectURL(opts *options.ClientOptions) (*url.URL, error) {
	auth := opts.Auth()
	if !auth.HasCredentials() {
		return nil, ablypush.NoCredentialsError()
	}
	u := opts.ResolveURL(opts.RealtimeHost(), opts.RealtimePort())
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/"

	q := url.Values{}
	if auth.UseTokenAuth || auth.Key == "" {
		q.Set("access_token", auth.Token)
	} else {
		q.Set("key", auth.Key)
	}
	if id := opts.ClientID(); id != "" {
		q.Set("clientId", id)
	}
	if opts.Binary() {
		q.Set("format", "msgpack")
	} else {
		q.Set("format", "json")
	}
	if !opts.EchoMessages() {
		q.Set("echo", "false")
	}
	switch {
	case opts.ResumeKey() != "":
		q.Set("resume", opts.ResumeKey())
		q.Set("connectionSerial", strconv.FormatInt(opts.ConnectionSerial(), 10))
	case opts.Recover() != "":
		q.Set("recover", opts.Recover())
	}
	q.Set("v", protocolVersion)
	u.RawQuery = q.Encode()
	return u, nil
}

// Conn is an open realtime websocket. Writes go through WriteMessage so
// that pings and data never interleave.
type Conn struct {
	conn *websocket.Conn
	log  *log.Entry

	writeMu   sync.Mutex
	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// Dial connects to the realtime endpoint. A nil dialer uses
// websocket.DefaultDialer.
func Dial(ctx context.Context, opts *options.ClientOptions, dialer *websocket.Dialer) (*Conn, error) {
	u, err := ConnectURL(opts)
	if err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	clog := log.WithField("host", u.Host)
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		clog.WithError(err).Warn("Realtime connect failed")
		return nil, err
	}
	c := &Conn{
		conn: ws,
		log:  clog,
		stop: make(chan struct{}),
	}
	if err := c.initPings(); err != nil {
		_ = ws.Close()
		return nil, err
	}
	c.wg.Add(1)
	go c.runPings()
	clog.Info("Connected")
	return c, nil
}

func (c *Conn) initPings() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return nil
}

func (c *Conn) runPings() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					c.log.WithError(err).Warn("Error sending ping")
				}
				return
			}
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// WriteMessage sends one websocket message.
func (c *Conn) WriteMessage(messageType int, data []byte) error {
	return c.write(messageType, data)
}

// ReadMessage returns the next websocket message. Only one goroutine may
// read at a time.
func (c *Conn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.write(websocket.CloseMessage, msg)
		err = c.conn.Close()
	})
	return err
}
