// Package realtime implements the push channel to the chat broker.
//
// The broker speaks STOMP 1.2 over a websocket, one frame per websocket
// message. [Channel] owns a single connection and moves through
// [StateDisconnected] → [StateConnecting] → [StateConnected] and back.
// It never reconnects on its own; callers decide whether to retry.
//
// Room topics are /topic/chat/room/{id}. A second [Channel.Subscribe] for a
// room that is already subscribed returns the existing [Subscription], so a
// single inbound event is delivered to exactly one handler.
//
// Control events (enter, leave, read) and chat messages are published
// fire-and-forget; no receipt is requested. Malformed inbound frames and
// payloads are logged and dropped.
package realtime
