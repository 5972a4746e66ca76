package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/adrg/xdg"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/csw/ablypush"
	"github.com/csw/ablypush/options"
	"github.com/csw/ablypush/push"
	"github.com/csw/ablypush/realtime"
	"github.com/csw/ablypush/rest"
)

const appName = "ablypush"

const usage = `Usage: ablypush [flags] <command>

Commands:
  publish     send a push notification
  activate    register this device for push
  deactivate  remove this device's registration
  status      show the stored device registration
  dial        open and close a realtime connection

Flags:
`

// flag name -> option key
var optionFlags = map[string]string{
	"key":           options.KeyKey,
	"token":         options.KeyToken,
	"client-id":     options.KeyClientID,
	"environment":   options.KeyEnvironment,
	"rest-host":     options.KeyRestHost,
	"realtime-host": options.KeyRealtimeHost,
	"rest-port":     options.KeyRestPort,
	"realtime-port": options.KeyRealtimePort,
	"tls":           options.KeyTLS,
	"binary":        options.KeyBinary,
	"echo-messages": options.KeyEchoMessages,
	"resume-key":    options.KeyResumeKey,
	"recover":       options.KeyRecover,
}

var (
	recipientClient string
	recipientDevice string
	recipientChan   string
	title           string
	body            string
	data            map[string]string
	deviceToken     string
	platformName    string
	transportType   string
	timeout         time.Duration
	debug           bool
)

func defineFlags(fs *pflag.FlagSet) {
	fs.StringP("key", "k", "", "API key (<appId>.<keyId>:<secret>)")
	fs.String("token", "", "auth token, used instead of the key")
	fs.StringP("client-id", "c", "", "client id to act as")
	fs.StringP("environment", "e", "", "service environment, e.g. sandbox")
	fs.String("rest-host", "", "override the REST host (disables fallback hosts)")
	fs.String("realtime-host", "", "override the realtime host")
	fs.Int("rest-port", 0, "override the REST port")
	fs.Int("realtime-port", 0, "override the realtime port")
	fs.Bool("tls", true, "use TLS")
	fs.Bool("binary", false, "request the binary protocol on realtime connections")
	fs.Bool("echo-messages", true, "echo own messages on realtime connections")
	fs.String("resume-key", "", "resume key for a dropped realtime connection")
	fs.String("recover", "", "recovery key for a previous realtime connection")

	fs.StringVar(&recipientClient, "to-client", "", "publish: recipient client id")
	fs.StringVar(&recipientDevice, "to-device", "", "publish: recipient device id")
	fs.StringVar(&recipientChan, "to-channel", "", "publish: recipient channel")
	fs.StringVarP(&title, "title", "t", "", "publish: notification title")
	fs.StringVarP(&body, "body", "b", "", "publish: notification body")
	fs.StringToStringVarP(&data, "data", "d", nil, "publish: data fields (k=v,...)")
	fs.StringVar(&deviceToken, "device-token", "", "activate: hex device token from the platform")
	fs.StringVar(&platformName, "platform", "ios", "activate: device platform")
	fs.StringVar(&transportType, "transport", "apns", "activate: push transport type")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "time to wait for the operation")
	fs.BoolVar(&debug, "debug", false, "enable debug logging")
}

func parseConfig(v *viper.Viper) error {
	cfg, err := xdg.SearchConfigFile(appName + "/config")
	if err != nil {
		// config file not found
		return nil
	}
	v.SetConfigType("env")
	v.SetConfigFile(cfg)
	return v.ReadInConfig()
}

func loadOptions(fs *pflag.FlagSet) (*options.ClientOptions, error) {
	v := viper.New()
	for flag, key := range optionFlags {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, err
		}
	}
	v.SetEnvPrefix("ABLY")
	v.AutomaticEnv()
	if err := parseConfig(v); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return options.Load(v)
}

func recipient() (ablypush.Recipient, error) {
	switch {
	case recipientClient != "":
		return ablypush.ClientRecipient(recipientClient), nil
	case recipientDevice != "":
		return ablypush.DeviceRecipient(ablypush.DeviceID(recipientDevice)), nil
	case recipientChan != "":
		return ablypush.Recipient{"channel": recipientChan}, nil
	}
	return nil, errors.New("publish needs one of --to-client, --to-device or --to-channel")
}

func runPublish(ctx context.Context, client *rest.Client) error {
	to, err := recipient()
	if err != nil {
		return err
	}
	payload := ablypush.Notification{Title: title, Body: body}.Payload(data)
	if err := client.Push().Publish(ctx, to, payload); err != nil {
		return err
	}
	fmt.Println("Published.")
	return nil
}

func awaitResult(ctx context.Context, ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runActivate(ctx context.Context, client *rest.Client, d *cliDelegate, pl *cliPlatform) error {
	pl.bind(client.Push())
	client.Push().Activate()
	if err := awaitResult(ctx, d.activateCh); err != nil {
		return err
	}
	fmt.Print(formatDevice(client.Push()))
	return nil
}

func runDeactivate(ctx context.Context, client *rest.Client, d *cliDelegate) error {
	client.Push().Deactivate()
	if err := awaitResult(ctx, d.deactivateCh); err != nil {
		return err
	}
	fmt.Println("Deactivated.")
	return nil
}

func runDial(ctx context.Context, opts *options.ClientOptions) error {
	conn, err := realtime.Dial(ctx, opts, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Connected to %s.\n", conn.RemoteAddr())
	return conn.Close()
}

func run(ctx context.Context, command string, opts *options.ClientOptions) error {
	if command == "dial" {
		return runDial(ctx, opts)
	}
	store, err := push.DefaultFileStore(appName)
	if err != nil {
		return err
	}
	d := newCLIDelegate()
	pl, err := newCLIPlatform(platformName, transportType, deviceToken)
	if err != nil {
		return err
	}
	client, err := rest.NewClient(opts, rest.WithPushOptions(
		push.WithDelegate(d), push.WithPlatform(pl), push.WithStore(store)))
	if err != nil {
		return err
	}
	defer client.Close()

	switch command {
	case "publish":
		return runPublish(ctx, client)
	case "activate":
		return runActivate(ctx, client, d, pl)
	case "deactivate":
		return runDeactivate(ctx, client, d)
	case "status":
		fmt.Print(formatDevice(client.Push()))
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

func main() {
	fs := pflag.NewFlagSet(appName, pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	defineFlags(fs)
	_ = fs.Parse(os.Args[1:])
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	args := fs.Args()
	if len(args) != 1 {
		fs.Usage()
		os.Exit(2)
	}
	command := strings.ToLower(args[0])

	opts, err := loadOptions(fs)
	if err != nil {
		log.WithError(err).Error("Configuration error")
		os.Exit(1)
	}
	log.WithField("options", opts).Debug("Loaded configuration")

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, unix.SIGTERM, unix.SIGHUP)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := run(ctx, command, opts); err != nil {
		log.WithError(err).Errorf("%s failed", command)
		stop()
		os.Exit(1)
	}
}
