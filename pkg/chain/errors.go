package chain

import "errors"

var (
	// ErrUnsupportedProtocol is returned when no adapter exists for the
	// requested protocol.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrUnknownNetwork is returned when the protocol is known but the
	// network name has no profile. There is deliberately no fallback to a
	// default network.
	ErrUnknownNetwork = errors.New("unknown network")

	// ErrInvalidRequest is returned for malformed anchor requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrServiceUnavailable is the generic condition surfaced to callers
	// after any submission pipeline failure. The ledger-specific diagnostic
	// is reported to the notifier, never to the caller.
	ErrServiceUnavailable = errors.New("blockchain service unavailable")

	// ErrInfrastructure classifies environment/connectivity failures on the
	// read path. Store status checks treat these as fatal instead of
	// absorbing them into a fragment reason.
	ErrInfrastructure = errors.New("ledger unreachable")
)
