package internal

// ExampleRegistration is a deviceRegistrations response for an iOS device.
var ExampleRegistration = []byte(`{
	"id": "01FJ9JQ1V7PQ2H0ZQG6W4X2T3N",
	"clientId": "bob",
	"platform": "ios",
	"formFactor": "phone",
	"metadata": {},
	"push": {
	  "recipient": {
		"transportType": "apns",
		"deviceToken": "deadbeef"
	  },
	  "state": "ACTIVE"
	},
	"updateToken": "example-update-token"
  }`)

// ExampleIdentityRegistration carries the update token in the newer
// deviceIdentityToken form.
var ExampleIdentityRegistration = []byte(`{
	"id": "01FJ9JQ1V7PQ2H0ZQG6W4X2T3N",
	"platform": "android",
	"formFactor": "tablet",
	"push": {
	  "recipient": {
		"transportType": "fcm",
		"registrationToken": "fcm-token"
	  },
	  "state": "ACTIVE"
	},
	"deviceIdentityToken": {
	  "token": "identity-token",
	  "issued": 1636953371000,
	  "expires": 1668489371000
	}
  }`)

// ExampleError is the body of a failed request.
var ExampleError = []byte(`{
	"error": {
	  "message": "Unable to find app with id = abc",
	  "code": 40400,
	  "statusCode": 404,
	  "href": "https://help.ably.io/error/40400"
	}
  }`)

// ExamplePublish is a publish payload as documented for the service.
var ExamplePublish = []byte(`{
	"notification": {
	  "title": "Build passed",
	  "body": "myproject:main in 4m"
	},
	"data": {
	  "pipeline": "d57b4188-9c6f-4dae-9043-ceca7e372970"
	}
  }`)
