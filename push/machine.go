package push

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/csw/ablypush"
)

type event interface{}

type activateEvent struct{}

type deactivateEvent struct{}

type gotTokenEvent struct {
	token ablypush.DeviceToken
}

type tokenFailedEvent struct {
	err error
}

type registeredEvent struct {
	token ablypush.UpdateToken
	err   error
}

type updatedEvent struct {
	token ablypush.UpdateToken
	err   error
}

type deregisteredEvent struct {
	err error
}

func (p *Push) handle(ev event) {
	switch ev := ev.(type) {
	case activateEvent:
		p.onActivate()
	case deactivateEvent:
		p.onDeactivate()
	case gotTokenEvent:
		p.onToken(ev.token)
	case tokenFailedEvent:
		p.onTokenFailed(ev.err)
	case registeredEvent:
		p.onRegistered(ev.token, ev.err)
	case updatedEvent:
		p.onUpdated(ev.token, ev.err)
	case deregisteredEvent:
		p.onDeregistered(ev.err)
	default:
		p.log.WithField("event", fmt.Sprintf("%T", ev)).Error("Unhandled push event")
	}
}

func (p *Push) onActivate() {
	switch p.state {
	case Activating:
		p.log.Debug("Activation already in progress")
	case Registered:
		p.activateCallback(nil)
	case Deactivating:
		p.activateCallback(ablypush.InvalidStatef("cannot activate while deactivation is in progress"))
	default:
		if p.platform == nil {
			p.activateCallback(ablypush.UnsupportedError())
			return
		}
		p.setState(Activating)
		if p.device.ID == "" {
			p.updateDevice(func(d *LocalDevice) { d.ID = ablypush.DeviceID(uuid.NewString()) })
		}
		if len(p.device.Token) > 0 {
			p.register()
			return
		}
		go p.platform.RequestToken()
	}
}

func (p *Push) onDeactivate() {
	switch p.state {
	case Registered:
		p.setState(Deactivating)
		p.deregister()
	case Deactivating:
		p.log.Debug("Deactivation already in progress")
	case Activating:
		p.deactivateCallback(ablypush.InvalidStatef("cannot deactivate while activation is in progress"))
	default:
		p.deactivateCallback(ablypush.NotRegisteredError())
	}
}

func (p *Push) onToken(token ablypush.DeviceToken) {
	changed := !bytes.Equal(token, p.device.Token)
	if changed {
		p.updateDevice(func(d *LocalDevice) { d.Token = token })
	}
	switch p.state {
	case Activating:
		p.register()
	case Registered:
		if changed {
			p.log.Info("Device token changed, updating registration")
			p.update()
		}
	}
}

func (p *Push) onTokenFailed(err error) {
	if p.state != Activating {
		p.log.WithError(err).Warn("Platform token failure outside activation")
		return
	}
	p.setState(Failed)
	p.activateCallback(ablypush.PlatformRegistrationError(err))
}

func (p *Push) onRegistered(token ablypush.UpdateToken, err error) {
	sent := p.registering
	p.registering = nil
	if p.state != Activating {
		p.log.WithField("state", p.state).Warn("Ignoring registration result")
		return
	}
	if err != nil {
		p.setState(Failed)
		p.activateCallback(err)
		return
	}
	p.updateDevice(func(d *LocalDevice) { d.UpdateToken = token })
	p.setState(Registered)
	p.activateCallback(nil)
	if sent != nil && !bytes.Equal(sent, p.device.Token) {
		p.log.Info("Device token changed during registration, updating")
		p.update()
	}
}

func (p *Push) onUpdated(token ablypush.UpdateToken, err error) {
	if err != nil {
		err = ablypush.UpdateFailure(err)
		p.log.WithError(err).Warn("Registration update failed")
		if d, ok := p.delegate.(UpdateFailedDelegate); ok {
			p.callback(func() { d.UpdateFailedCallback(err) })
		}
		return
	}
	if token != "" && p.state == Registered {
		p.updateDevice(func(d *LocalDevice) { d.UpdateToken = token })
	}
}

func (p *Push) onDeregistered(err error) {
	if p.state != Deactivating {
		p.log.WithField("state", p.state).Warn("Ignoring deregistration result")
		return
	}
	if err != nil {
		p.setState(Registered)
		p.deactivateCallback(err)
		return
	}
	p.updateDevice(func(d *LocalDevice) {
		d.ID = ""
		d.UpdateToken = ""
	})
	p.setState(Unregistered)
	p.deactivateCallback(nil)
}

func (p *Push) details() ablypush.DeviceDetails {
	return ablypush.DeviceDetails{
		ID:         p.device.ID,
		ClientID:   p.clientID,
		Platform:   p.platform.Platform(),
		FormFactor: p.platform.FormFactor(),
		Push: ablypush.DevicePushDetails{
			Recipient: ablypush.TokenRecipient(p.platform.TransportType(), p.device.Token),
		},
	}
}

// register and update both go through CustomRegister when the delegate
// provides it.
func (p *Push) register() {
	if p.registering != nil {
		p.log.Debug("Registration already in flight")
		return
	}
	p.registering = p.device.Token
	p.sendRegistration(func(token ablypush.UpdateToken, err error) event {
		return registeredEvent{token: token, err: err}
	}, false)
}

func (p *Push) update() {
	p.sendRegistration(func(token ablypush.UpdateToken, err error) event {
		return updatedEvent{token: token, err: err}
	}, true)
}

func (p *Push) sendRegistration(result func(ablypush.UpdateToken, error) event, isUpdate bool) {
	details := p.details()
	if cr, ok := p.delegate.(CustomRegisterer); ok {
		done := once(func(token ablypush.UpdateToken, err error) {
			p.post(result(token, err))
		})
		p.callback(func() { cr.CustomRegister(details, done) })
		return
	}
	var req *ablypush.Request
	if isUpdate {
		req = ablypush.MakeUpdate(&details, p.device.UpdateToken)
	} else {
		req = ablypush.MakeRegister(&details)
	}
	rlog := p.log.WithFields(log.Fields{"device": details.ID, "update": isUpdate})
	go func() {
		resp, err := p.executor.Execute(p.ctx, req)
		if err != nil {
			rlog.WithError(err).Warn("Device registration request failed")
			p.post(result("", err))
			return
		}
		reg, err := ablypush.ParseDeviceRegistration(resp.Body)
		if err != nil {
			p.post(result("", ablypush.ServiceError(0, resp.StatusCode,
				fmt.Sprintf("malformed registration response: %v", err))))
			return
		}
		token := reg.Token()
		if token == "" && !isUpdate {
			p.post(result("", ablypush.ServiceError(0, resp.StatusCode,
				"registration response carried no update token")))
			return
		}
		rlog.Debug("Device registration accepted")
		p.post(result(token, nil))
	}()
}

func (p *Push) deregister() {
	id := p.device.ID
	if cd, ok := p.delegate.(CustomDeregisterer); ok {
		var o sync.Once
		done := func(err error) {
			o.Do(func() { p.post(deregisteredEvent{err: err}) })
		}
		p.callback(func() { cd.CustomDeregister(id, done) })
		return
	}
	req := ablypush.MakeDeregister(id, p.device.UpdateToken)
	go func() {
		_, err := p.executor.Execute(p.ctx, req)
		p.post(deregisteredEvent{err: err})
	}()
}

func once(fn func(ablypush.UpdateToken, error)) func(ablypush.UpdateToken, error) {
	var o sync.Once
	return func(token ablypush.UpdateToken, err error) {
		o.Do(func() { fn(token, err) })
	}
}

func (p *Push) setState(s State) {
	p.log.WithFields(log.Fields{"from": p.state, "to": s}).Debug("Push state change")
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Push) updateDevice(change func(*LocalDevice)) {
	p.mu.Lock()
	change(&p.device)
	d := p.device
	p.mu.Unlock()
	if err := p.store.Save(d); err != nil {
		p.log.WithError(err).Warn("Failed to persist device")
	}
}

func (p *Push) activateCallback(err error) {
	if p.delegate == nil {
		p.log.WithError(err).Debug("Activation finished, no delegate")
		return
	}
	d := p.delegate
	p.callback(func() { d.ActivateCallback(err) })
}

func (p *Push) deactivateCallback(err error) {
	if p.delegate == nil {
		p.log.WithError(err).Debug("Deactivation finished, no delegate")
		return
	}
	d := p.delegate
	p.callback(func() { d.DeactivateCallback(err) })
}
