package mqtt

import "fmt"

// Topic prefixes and suffixes for the DevScout MQTT namespace.
//
// Discovery request topics use the scheme: {ownerId}/discovery/{suffix}
// with the message kind appended: .../query, .../cancel, .../test.
// Return topics are generated per owner or per request under
// {ownerId}/discovery/return/{id}.
const (
	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "devscout/system"

	// TopicDiscoverySegment is the fixed middle segment of discovery topics.
	TopicDiscoverySegment = "discovery"

	// TopicSuffixQuery is appended to a request topic for capability queries.
	TopicSuffixQuery = "query"

	// TopicSuffixCancel is appended to a request topic for cancel messages.
	TopicSuffixCancel = "cancel"

	// TopicSuffixTest is appended to a request topic for availability probes.
	TopicSuffixTest = "test"
)

// Topics provides builders for DevScout MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	queryTopic := topics.DiscoveryQuery("user-1", "devices")
//	// Returns: "user-1/discovery/devices/query"
type Topics struct{}

// DiscoveryRequest returns the full request topic for an owner and suffix.
//
// Example: user-1/discovery/devices
func (Topics) DiscoveryRequest(ownerID, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", ownerID, TopicDiscoverySegment, suffix)
}

// DiscoveryQuery returns the topic on which capability queries are broadcast.
//
// Example: user-1/discovery/devices/query
func (t Topics) DiscoveryQuery(ownerID, suffix string) string {
	return t.DiscoveryRequest(ownerID, suffix) + "/" + TopicSuffixQuery
}

// DiscoveryCancel returns the topic on which subscription cancellations are
// announced to repositories.
//
// Example: user-1/discovery/devices/cancel
func (t Topics) DiscoveryCancel(ownerID, suffix string) string {
	return t.DiscoveryRequest(ownerID, suffix) + "/" + TopicSuffixCancel
}

// DiscoveryTest returns the topic on which repository availability probes
// are broadcast.
//
// Example: user-1/discovery/devices/test
func (t Topics) DiscoveryTest(ownerID, suffix string) string {
	return t.DiscoveryRequest(ownerID, suffix) + "/" + TopicSuffixTest
}

// DiscoveryReturn returns a return topic for the given owner and id.
// Scatter-gather stages use a fresh id per request; subscriptions share
// one id per owner.
//
// Example: user-1/discovery/return/3f8a2c
func (Topics) DiscoveryReturn(ownerID, id string) string {
	return fmt.Sprintf("%s/%s/return/%s", ownerID, TopicDiscoverySegment, id)
}

// SystemStatus returns the system status topic used for online/offline
// announcements and the LWT.
//
// Example: devscout/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
