package options

import (
	"github.com/spf13/viper"
)

// Configuration keys read by Load.
const (
	KeyKey              = "key"
	KeyToken            = "token"
	KeyClientID         = "client_id"
	KeyEnvironment      = "environment"
	KeyRestHost         = "rest_host"
	KeyRealtimeHost     = "realtime_host"
	KeyRestPort         = "rest_port"
	KeyRealtimePort     = "realtime_port"
	KeyTLS              = "tls"
	KeyBinary           = "binary"
	KeyEchoMessages     = "echo_messages"
	KeyQueueMessages    = "queue_messages"
	KeyAutoConnect      = "auto_connect"
	KeyResumeKey        = "resume_key"
	KeyRecover          = "recover"
	KeyConnectionSerial = "connection_serial"
)

// SetDefaults registers the option defaults with v, so unset boolean keys
// keep their library defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTLS, true)
	v.SetDefault(KeyEchoMessages, true)
	v.SetDefault(KeyQueueMessages, true)
	v.SetDefault(KeyAutoConnect, true)
}

// Load builds ClientOptions from the settings in v. Only keys that are set
// produce options, so derived values keep working for the rest.
func Load(v *viper.Viper) (*ClientOptions, error) {
	SetDefaults(v)
	var opts []Option
	if key := v.GetString(KeyKey); key != "" {
		opts = append(opts, WithKey(key))
	}
	if token := v.GetString(KeyToken); token != "" {
		opts = append(opts, WithToken(token))
	}
	if id := v.GetString(KeyClientID); id != "" {
		opts = append(opts, WithClientID(id))
	}
	if env := v.GetString(KeyEnvironment); env != "" {
		opts = append(opts, WithEnvironment(env))
	}
	if host := v.GetString(KeyRestHost); host != "" {
		opts = append(opts, WithRestHost(host))
	}
	if host := v.GetString(KeyRealtimeHost); host != "" {
		opts = append(opts, WithRealtimeHost(host))
	}
	if v.IsSet(KeyRestPort) {
		opts = append(opts, WithRestPort(v.GetInt(KeyRestPort)))
	}
	if v.IsSet(KeyRealtimePort) {
		opts = append(opts, WithRealtimePort(v.GetInt(KeyRealtimePort)))
	}
	if rk := v.GetString(KeyResumeKey); rk != "" {
		opts = append(opts, WithResumeKey(rk))
	}
	if rec := v.GetString(KeyRecover); rec != "" {
		opts = append(opts, WithRecover(rec))
	}
	if v.IsSet(KeyConnectionSerial) {
		opts = append(opts, WithConnectionSerial(v.GetInt64(KeyConnectionSerial)))
	}
	opts = append(opts,
		WithTLS(v.GetBool(KeyTLS)),
		WithBinary(v.GetBool(KeyBinary)),
		WithEchoMessages(v.GetBool(KeyEchoMessages)),
		WithQueueMessages(v.GetBool(KeyQueueMessages)),
		WithAutoConnect(v.GetBool(KeyAutoConnect)),
	)
	return New(opts...)
}
