package push

import (
	"github.com/csw/ablypush"
)

// RegistererDelegate receives the outcome of Activate and Deactivate. A nil
// error means success. All delegate methods are called on the Push's
// callback goroutine, one at a time and in order.
type RegistererDelegate interface {
	ActivateCallback(err error)
	DeactivateCallback(err error)
}

// UpdateFailedDelegate is implemented by delegates that want to hear about
// failed registration updates. The registration stays active.
type UpdateFailedDelegate interface {
	UpdateFailedCallback(err error)
}

// CustomRegisterer is implemented by delegates that register the device
// through their own backend. When present, Push makes no registration
// request itself; done must be called exactly once with the update token or
// an error.
type CustomRegisterer interface {
	CustomRegister(details ablypush.DeviceDetails, done func(ablypush.UpdateToken, error))
}

// CustomDeregisterer is the deregistration counterpart of CustomRegisterer.
type CustomDeregisterer interface {
	CustomDeregister(id ablypush.DeviceID, done func(error))
}

// Platform is the bridge to the platform push service (APNs, FCM, ...).
// RequestToken must not block: the token, or the failure, is delivered
// later through Push.DidRegisterForRemoteNotifications or
// Push.DidFailToRegisterForRemoteNotifications.
type Platform interface {
	Platform() string
	FormFactor() string
	TransportType() string
	RequestToken()
}

// State of the device registration.
type State int

const (
	Unregistered State = iota
	Activating
	Registered
	Deactivating
	Failed
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Activating:
		return "activating"
	case Registered:
		return "registered"
	case Deactivating:
		return "deactivating"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
