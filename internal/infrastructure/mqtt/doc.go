// Package mqtt provides MQTT client connectivity for DevScout.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// DevScout uses MQTT as the message bus connecting the discovery core
// to independently operated discovery repositories. The broker decouples
// the core from repository implementations.
//
//	DevScout Core ↔ MQTT Broker ↔ Discovery Repositories
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Receive replies on a return topic
//	err = client.Subscribe(mqtt.Topics{}.DiscoveryReturn("user-1", reqID), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Broadcast a capability query
//	topic := mqtt.Topics{}.DiscoveryQuery("user-1", "devices")
//	client.Publish(topic, queryPayload, 1, false)
package mqtt
