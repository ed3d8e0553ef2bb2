// Package realtime provides a supervised client WebSocket connection with
// automatic reconnection.
//
// A Conn wraps a gorilla/websocket client socket and manages its full
// lifecycle: asynchronous dialing, ordered inbound frame delivery through a
// callback, close detection, and a linearly capped retry schedule when the
// connection drops unexpectedly. Higher layers (the bridge and direct
// channel clients) layer their own framing on top of the raw bytes a Conn
// delivers.
//
// Usage:
//
//	conn := realtime.NewConn(url, cfg.Channels.Reconnect, logger)
//	conn.SetOnMessage(func(data []byte) { ... })
//	conn.SetOnOpen(func() { ... })
//	conn.Connect()
//	defer conn.Disconnect()
package realtime
