// Package rest provides the authenticated HTTP executor and the Client that
// ties client options, executor and push facade together.
package rest

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/csw/ablypush"
	"github.com/csw/ablypush/options"
	"github.com/csw/ablypush/push"
)

// Client owns the executor and the push facade. Close tears both down.
type Client struct {
	opts     *options.ClientOptions
	executor ablypush.HTTPExecutor
	push     *push.Push
	cancel   context.CancelFunc
	done     chan struct{}
}

type clientConfig struct {
	httpClient *http.Client
	executor   ablypush.HTTPExecutor
	pushOpts   []push.Option
}

type ClientOption func(*clientConfig)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithExecutor replaces the default executor, mostly for tests.
func WithExecutor(e ablypush.HTTPExecutor) ClientOption {
	return func(cfg *clientConfig) { cfg.executor = e }
}

func WithPushOptions(opts ...push.Option) ClientOption {
	return func(cfg *clientConfig) { cfg.pushOpts = append(cfg.pushOpts, opts...) }
}

func NewClient(opts *options.ClientOptions, clientOpts ...ClientOption) (*Client, error) {
	if opts == nil {
		return nil, ablypush.InvalidArgumentf("client options must not be nil")
	}
	var cfg clientConfig
	for _, o := range clientOpts {
		o(&cfg)
	}
	exec := cfg.executor
	if exec == nil {
		e, err := NewExecutor(opts, cfg.httpClient)
		if err != nil {
			return nil, err
		}
		exec = e
	}
	pushOpts := []push.Option{
		push.WithClientID(opts.ClientID()),
		push.WithLogger(log.WithFields(log.Fields{"component": "push", "host": opts.RestHost()})),
	}
	p, err := push.New(exec, append(pushOpts, cfg.pushOpts...)...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		opts:     opts,
		executor: exec,
		push:     p,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		p.Run(ctx)
	}()
	return c, nil
}

func (c *Client) Options() *options.ClientOptions {
	return c.opts
}

func (c *Client) Push() *push.Push {
	return c.push
}

func (c *Client) Executor() ablypush.HTTPExecutor {
	return c.executor
}

// Close stops the push facade and waits for its state machine to exit.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}
