package tunnel

import "errors"

var (
	errMissingHostHeader  = errors.New("tunnel: missing Host header")
	errInvalidHostFormat  = errors.New("tunnel: invalid host format")
	errDeviceStreamFailed = errors.New("tunnel: device did not open a data connection in time")
	errUnknownControlLine = errors.New("tunnel: unrecognized control line")
)
