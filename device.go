package ablypush

import (
	"encoding/hex"
	"encoding/json"
)

// Keys under which a device registration is persisted. The values are shared
// with registrations saved by earlier releases and must never change.
const (
	DeviceIDKey          = "ARTDeviceId"
	DeviceUpdateTokenKey = "ARTDeviceUpdateToken"
	DeviceTokenKey       = "ARTDeviceToken"
)

// DeviceID identifies a device registration with the service.
type DeviceID string

// DeviceToken is the raw token handed out by the platform push service.
type DeviceToken []byte

// UpdateToken authorizes updating or deleting an existing registration.
type UpdateToken string

func (t DeviceToken) String() string {
	return hex.EncodeToString(t)
}

// ParseDeviceToken decodes the hex form produced by DeviceToken.String.
func ParseDeviceToken(s string) (DeviceToken, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, InvalidArgumentf("malformed device token: %v", err)
	}
	return DeviceToken(raw), nil
}

// Recipient addresses a push: a device, a client or a channel.
type Recipient map[string]interface{}

// Push registration states reported by the service.
const (
	PushStateActive  = "ACTIVE"
	PushStateFailing = "FAILING"
	PushStateFailed  = "FAILED"
)

type DevicePushDetails struct {
	Recipient   Recipient  `json:"recipient"`
	State       string     `json:"state,omitempty"`
	ErrorReason *ErrorInfo `json:"errorReason,omitempty"`
}

// DeviceDetails is the registration record for a device, as sent to and
// returned by the deviceRegistrations endpoint.
type DeviceDetails struct {
	ID         DeviceID          `json:"id"`
	ClientID   string            `json:"clientId,omitempty"`
	Platform   string            `json:"platform"`
	FormFactor string            `json:"formFactor"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Push       DevicePushDetails `json:"push"`
}

// DeviceRegistration is the service's answer to a registration request.
type DeviceRegistration struct {
	DeviceDetails
	UpdateToken         UpdateToken `json:"updateToken,omitempty"`
	DeviceIdentityToken *struct {
		Token UpdateToken `json:"token"`
	} `json:"deviceIdentityToken,omitempty"`
}

// Token returns whichever form of update token the service sent.
func (r *DeviceRegistration) Token() UpdateToken {
	if r.UpdateToken != "" {
		return r.UpdateToken
	}
	if r.DeviceIdentityToken != nil {
		return r.DeviceIdentityToken.Token
	}
	return ""
}

func ParseDeviceRegistration(body []byte) (*DeviceRegistration, error) {
	var reg DeviceRegistration
	if err := json.Unmarshal(body, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}
