// Package gateway bridges the discovery domain and the MQTT message bus.
//
// The gateway hides all messaging concerns behind discovery-specific
// operations: a synchronous-looking scatter-gather fetch of candidate
// devices, a repository availability probe, and live subscriptions through
// which repositories push candidate set changes. Callers never see topics,
// payload encoding or reply correlation.
//
// Subscriptions share one return topic per template owner. The topic is
// subscribed when the owner's first subscription is registered and torn
// down only when the owner's last subscription is cancelled. Notification
// dispatch runs on the transport's delivery goroutine; subscriber callbacks
// must hand off promptly and never block.
package gateway
