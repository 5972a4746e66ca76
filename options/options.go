// Package options holds the configuration a client uses to reach the
// service. A ClientOptions is built once and never mutated; derived values
// such as hosts are computed on every call.
package options

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/csw/ablypush"
)

const (
	baseDomain         = "ably.io"
	restPrefix         = "rest."
	realtimePrefix     = "realtime."
	productionEnv      = "production"
	defaultTLSPort     = 443
	defaultPlainPort   = 80
	fallbackHostDomain = "ably-realtime.com"
)

var fallbackPrefixes = []string{"a", "b", "c", "d", "e"}

// AuthOptions is the credential bundle. Either Key or Token is used; Key
// takes precedence unless UseTokenAuth is set.
type AuthOptions struct {
	Key          string
	KeyName      string
	KeySecret    string
	Token        string
	UseTokenAuth bool
}

func (a AuthOptions) HasCredentials() bool {
	return a.Key != "" || a.Token != ""
}

// ParseKey splits an API key of the form "<appId>.<keyId>:<secret>".
func ParseKey(key string) (AuthOptions, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return AuthOptions{}, ablypush.InvalidArgumentf(
			"invalid key: expected <name>:<secret>, got %d field(s)", len(parts))
	}
	nameParts := strings.Split(parts[0], ".")
	if len(nameParts) != 2 || nameParts[0] == "" || nameParts[1] == "" {
		return AuthOptions{}, ablypush.InvalidArgumentf(
			"invalid key name: expected <appId>.<keyId>, got %d field(s)", len(nameParts))
	}
	return AuthOptions{Key: key, KeyName: parts[0], KeySecret: parts[1]}, nil
}

// ClientOptions describes how a client reaches the service.
type ClientOptions struct {
	auth         AuthOptions
	clientID     string
	restHost     string
	realtimeHost string
	restPort     int
	realtimePort int
	environment  string
	noTLS        bool

	queueMessages bool
	echoMessages  bool
	binary        bool
	autoConnect   bool

	// Opaque connection resumption fields, passed through to the realtime
	// transport untouched.
	connectionSerial int64
	resumeKey        string
	recover          string
}

type Option func(*ClientOptions) error

func defaults() *ClientOptions {
	return &ClientOptions{
		queueMessages: true,
		echoMessages:  true,
		autoConnect:   true,
	}
}

// New returns options with the defaults, modified by opts.
func New(opts ...Option) (*ClientOptions, error) {
	o := defaults()
	if err := o.apply(opts); err != nil {
		return nil, err
	}
	return o, nil
}

// NewWithKey returns options authenticating with the given API key.
func NewWithKey(key string, opts ...Option) (*ClientOptions, error) {
	return New(append([]Option{WithKey(key)}, opts...)...)
}

// With returns a copy of o modified by opts. o itself is left unchanged.
func (o *ClientOptions) With(opts ...Option) (*ClientOptions, error) {
	c := *o
	if err := c.apply(opts); err != nil {
		return nil, err
	}
	return &c, nil
}

func (o *ClientOptions) apply(opts []Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

func WithKey(key string) Option {
	return func(o *ClientOptions) error {
		auth, err := ParseKey(key)
		if err != nil {
			return err
		}
		auth.Token = o.auth.Token
		auth.UseTokenAuth = o.auth.UseTokenAuth
		o.auth = auth
		return nil
	}
}

// WithToken authenticates with a previously issued token instead of a key.
func WithToken(token string) Option {
	return func(o *ClientOptions) error {
		o.auth.Token = token
		o.auth.UseTokenAuth = true
		return nil
	}
}

func WithClientID(id string) Option {
	return func(o *ClientOptions) error {
		if id == "*" {
			return ablypush.InvalidArgumentf("wildcard client id is not allowed in client options")
		}
		o.clientID = id
		return nil
	}
}

// WithRestHost pins the REST endpoint. Fallback hosts are disabled once
// this is set.
func WithRestHost(host string) Option {
	return func(o *ClientOptions) error {
		o.restHost = host
		return nil
	}
}

func WithRealtimeHost(host string) Option {
	return func(o *ClientOptions) error {
		o.realtimeHost = host
		return nil
	}
}

func WithRestPort(port int) Option {
	return func(o *ClientOptions) error {
		if err := checkPort(port); err != nil {
			return err
		}
		o.restPort = port
		return nil
	}
}

func WithRealtimePort(port int) Option {
	return func(o *ClientOptions) error {
		if err := checkPort(port); err != nil {
			return err
		}
		o.realtimePort = port
		return nil
	}
}

func WithEnvironment(env string) Option {
	return func(o *ClientOptions) error {
		o.environment = env
		return nil
	}
}

func WithTLS(tls bool) Option {
	return func(o *ClientOptions) error {
		o.noTLS = !tls
		return nil
	}
}

func WithQueueMessages(queue bool) Option {
	return func(o *ClientOptions) error {
		o.queueMessages = queue
		return nil
	}
}

func WithEchoMessages(echo bool) Option {
	return func(o *ClientOptions) error {
		o.echoMessages = echo
		return nil
	}
}

func WithBinary(binary bool) Option {
	return func(o *ClientOptions) error {
		o.binary = binary
		return nil
	}
}

func WithAutoConnect(auto bool) Option {
	return func(o *ClientOptions) error {
		o.autoConnect = auto
		return nil
	}
}

func WithConnectionSerial(serial int64) Option {
	return func(o *ClientOptions) error {
		o.connectionSerial = serial
		return nil
	}
}

func WithResumeKey(key string) Option {
	return func(o *ClientOptions) error {
		o.resumeKey = key
		return nil
	}
}

func WithRecover(recoverKey string) Option {
	return func(o *ClientOptions) error {
		o.recover = recoverKey
		return nil
	}
}

func checkPort(port int) error {
	if port <= 0 || port > 65535 {
		return ablypush.InvalidArgumentf("invalid port %d", port)
	}
	return nil
}

func (o *ClientOptions) Auth() AuthOptions {
	return o.auth
}

func (o *ClientOptions) ClientID() string {
	return o.clientID
}

func (o *ClientOptions) Environment() string {
	return o.environment
}

func (o *ClientOptions) TLS() bool {
	return !o.noTLS
}

func (o *ClientOptions) QueueMessages() bool {
	return o.queueMessages
}

func (o *ClientOptions) EchoMessages() bool {
	return o.echoMessages
}

func (o *ClientOptions) Binary() bool {
	return o.binary
}

func (o *ClientOptions) AutoConnect() bool {
	return o.autoConnect
}

func (o *ClientOptions) ConnectionSerial() int64 {
	return o.connectionSerial
}

func (o *ClientOptions) ResumeKey() string {
	return o.resumeKey
}

func (o *ClientOptions) Recover() string {
	return o.recover
}

// RestHost returns the explicit REST host if one was set, otherwise the
// host derived from the environment.
func (o *ClientOptions) RestHost() string {
	if o.restHost != "" {
		return o.restHost
	}
	return o.envPrefix() + restPrefix + baseDomain
}

func (o *ClientOptions) RealtimeHost() string {
	if o.realtimeHost != "" {
		return o.realtimeHost
	}
	return o.envPrefix() + realtimePrefix + baseDomain
}

func (o *ClientOptions) envPrefix() string {
	if o.environment == "" || o.environment == productionEnv {
		return ""
	}
	return o.environment + "-"
}

func (o *ClientOptions) defaultPort() int {
	if o.noTLS {
		return defaultPlainPort
	}
	return defaultTLSPort
}

func (o *ClientOptions) RestPort() int {
	if o.restPort != 0 {
		return o.restPort
	}
	return o.defaultPort()
}

func (o *ClientOptions) RealtimePort() int {
	if o.realtimePort != 0 {
		return o.realtimePort
	}
	return o.defaultPort()
}

// IsFallbackPermitted reports whether requests may be retried against
// alternate hosts. Never once the REST host has been pinned.
func (o *ClientOptions) IsFallbackPermitted() bool {
	return o.restHost == ""
}

// FallbackHosts returns the alternate hosts for the production cluster, or
// nil when fallback is not permitted or a non-production environment is
// used.
func (o *ClientOptions) FallbackHosts() []string {
	if !o.IsFallbackPermitted() || o.envPrefix() != "" {
		return nil
	}
	hosts := make([]string, 0, len(fallbackPrefixes))
	for _, p := range fallbackPrefixes {
		hosts = append(hosts, p+"."+fallbackHostDomain)
	}
	return hosts
}

// ResolveURL composes the base URL for host and port. The scheme follows
// the TLS setting.
func (o *ClientOptions) ResolveURL(host string, port int) *url.URL {
	scheme := "https"
	if o.noTLS {
		scheme = "http"
	}
	return &url.URL{Scheme: scheme, Host: hostPort(host, port)}
}

func (o *ClientOptions) RestURL() *url.URL {
	return o.ResolveURL(o.RestHost(), o.RestPort())
}

func hostPort(host string, port int) string {
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return host + ":" + strconv.Itoa(port)
}

func (o *ClientOptions) String() string {
	return fmt.Sprintf("ClientOptions{rest=%s realtime=%s:%d env=%q clientId=%q}",
		o.RestURL(), o.RealtimeHost(), o.RealtimePort(), o.environment, o.clientID)
}
