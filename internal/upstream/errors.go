// Sentinel errors for the upstream session. These cross package boundaries
// as plain errors.Is-comparable values; callers outside this package log
// them or surface a fixed error message of their own.

package upstream

import "errors"

var (
	// ErrConnectFailed is returned by ensure() when the connect attempt
	// exceeds CONNECT_TIMEOUT or the handshake is rejected.
	ErrConnectFailed = errors.New("upstream: connect failed")
	// ErrRequestTimeout is returned by request() when the reply does not
	// arrive before its deadline.
	ErrRequestTimeout = errors.New("upstream: request timeout")
	// ErrUpstreamGone is returned to any pending request when the
	// connection closes before a reply arrives.
	ErrUpstreamGone = errors.New("upstream: connection gone")
	// ErrSubscribeFailed is returned when upstream answers a request (a
	// subscribe or any other command) with an error reply.
	ErrSubscribeFailed = errors.New("upstream: subscribe rejected")
)
