package main

import (
	"errors"
	"sync"

	"github.com/csw/ablypush"
	"github.com/csw/ablypush/push"
)

// cliDelegate hands activation results back to the waiting command.
type cliDelegate struct {
	activateCh   chan error
	deactivateCh chan error
}

func newCLIDelegate() *cliDelegate {
	return &cliDelegate{
		activateCh:   make(chan error, 1),
		deactivateCh: make(chan error, 1),
	}
}

func (d *cliDelegate) ActivateCallback(err error) {
	d.activateCh <- err
}

func (d *cliDelegate) DeactivateCallback(err error) {
	d.deactivateCh <- err
}

// cliPlatform stands in for a mobile push service: the token comes from the
// command line instead of APNs or FCM.
type cliPlatform struct {
	platform  string
	transport string
	token     ablypush.DeviceToken

	mu   sync.Mutex
	push *push.Push
}

func newCLIPlatform(platform, transport, hexToken string) (*cliPlatform, error) {
	pl := &cliPlatform{platform: platform, transport: transport}
	if hexToken != "" {
		tok, err := ablypush.ParseDeviceToken(hexToken)
		if err != nil {
			return nil, err
		}
		pl.token = tok
	}
	return pl, nil
}

func (pl *cliPlatform) bind(p *push.Push) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.push = p
}

func (pl *cliPlatform) Platform() string      { return pl.platform }
func (pl *cliPlatform) FormFactor() string    { return "desktop" }
func (pl *cliPlatform) TransportType() string { return pl.transport }

func (pl *cliPlatform) RequestToken() {
	pl.mu.Lock()
	p := pl.push
	pl.mu.Unlock()
	if p == nil {
		return
	}
	if len(pl.token) == 0 {
		p.DidFailToRegisterForRemoteNotifications(errors.New("no --device-token given"))
		return
	}
	p.DidRegisterForRemoteNotifications(pl.token)
}
