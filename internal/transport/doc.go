// Package transport is the byte-stream side of a chat session: it dials the
// server (optionally over TLS), runs one read loop per connection, and
// surfaces everything through Hooks.
package transport
