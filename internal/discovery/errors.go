package discovery

import "errors"

// Domain errors for the discovery package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, discovery.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when no stored candidate devices exist for a
	// device template id.
	ErrNotFound = errors.New("discovery: not found")

	// ErrNilTemplate is returned when a nil device template is passed where
	// one is required.
	ErrNilTemplate = errors.New("discovery: device template must not be nil")

	// ErrNilDescription is returned when a nil device description is passed
	// where one is required.
	ErrNilDescription = errors.New("discovery: device description must not be nil")

	// ErrNilContainer is returned when a nil result container is passed
	// where one is required.
	ErrNilContainer = errors.New("discovery: result container must not be nil")

	// ErrInvalidTemplate is returned when device template validation fails.
	ErrInvalidTemplate = errors.New("discovery: invalid device template")

	// ErrInvalidRequestTopic is returned when request topic validation fails.
	ErrInvalidRequestTopic = errors.New("discovery: invalid request topic")

	// ErrUnknownOperation is returned when a revision operation carries an
	// unrecognised type discriminator.
	ErrUnknownOperation = errors.New("discovery: unknown revision operation type")

	// ErrUnknownCriterion is returned when a scoring criterion carries an
	// unrecognised type discriminator.
	ErrUnknownCriterion = errors.New("discovery: unknown scoring criterion type")
)
