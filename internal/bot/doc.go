// Package bot ties the chat client together: transport, framing, packet
// mapping, the correlation watcher, packet handlers and plugins.
//
// Inbound data flows through one pipeline per packet:
//
//	decompress -> map -> OnPacketReceived -> handlers -> watcher -> plugins
//
// A packet whose command has no registered variant stops after mapping and
// is reported through OnUnhandledPacket.
package bot
