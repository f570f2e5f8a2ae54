// Package watcher correlates inbound packets with callers waiting on them.
//
// A watch is registered, offered every mapped packet in arrival order, and
// resolved at most once: with the matching packet, with a *PacketError when
// its cancel side matches first, or with an error when the caller's context
// ends or the connection drops.
package watcher
