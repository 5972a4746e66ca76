package ablypush

// Notification is the user-visible part of a push payload. See
// https://ably.com/docs/push/publish#payload-structure. Platform-specific
// overrides (apns, fcm, web) are not mapped; pass them through the payload
// map instead.
type Notification struct {
	Title       string `json:"title,omitempty"`
	Body        string `json:"body,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Sound       string `json:"sound,omitempty"`
	CollapseKey string `json:"collapseKey,omitempty"`
}

// Payload returns the publish payload carrying n and the optional data
// fields. Data values are delivered as strings by every platform.
func (n Notification) Payload(data map[string]string) map[string]interface{} {
	payload := map[string]interface{}{}
	notification := map[string]interface{}{}
	if n.Title != "" {
		notification["title"] = n.Title
	}
	if n.Body != "" {
		notification["body"] = n.Body
	}
	if n.Icon != "" {
		notification["icon"] = n.Icon
	}
	if n.Sound != "" {
		notification["sound"] = n.Sound
	}
	if n.CollapseKey != "" {
		notification["collapseKey"] = n.CollapseKey
	}
	if len(notification) > 0 {
		payload["notification"] = notification
	}
	if len(data) > 0 {
		payload["data"] = data
	}
	return payload
}

func ClientRecipient(clientID string) Recipient {
	return Recipient{"clientId": clientID}
}

func DeviceRecipient(id DeviceID) Recipient {
	return Recipient{"deviceId": string(id)}
}

func TokenRecipient(transportType string, token DeviceToken) Recipient {
	return Recipient{"transportType": transportType, "deviceToken": token.String()}
}
