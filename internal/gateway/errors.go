package gateway

import "errors"

var (
	// ErrNoRequestTopics indicates a fetch was attempted without any
	// request topics to broadcast under.
	ErrNoRequestTopics = errors.New("gateway: no request topics")

	// ErrSubscribeFailed indicates the transport rejected a return topic
	// subscription.
	ErrSubscribeFailed = errors.New("gateway: subscribe failed")
)
