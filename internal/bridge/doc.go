// Package bridge provides MQTT topic subscriptions tunnelled over a single
// WebSocket connection to the backend's broker bridge.
//
// The wire protocol is a thin JSON framing: outbound control frames carry
// "subscribe", "unsubscribe", and "publish" requests, inbound "message"
// frames carry the broker messages. The Client tracks subscription
// patterns across connection drops and replays them on every reopen, so
// callers subscribe once and keep receiving messages across reconnects.
//
// Topic matching follows MQTT wildcard rules ("+" for one segment, "#" for
// the remainder); see MatchTopic for the exact semantics. Topic builders
// for the site namespace live in topics.go.
package bridge
