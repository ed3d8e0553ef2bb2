// Package broker provides a direct MQTT connection for deployments
// co-located with the broker, as an alternative ingest path to the
// WebSocket bridge. Subscriptions are tracked and restored across paho's
// automatic reconnects, and the agent announces its own lifecycle on a
// retained status topic with an LWT for crash detection.
package broker
