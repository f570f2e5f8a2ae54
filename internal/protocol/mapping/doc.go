// Package mapping binds typed packet structures to wire packets.
//
// Each command is described by a Schema: the header keys it reads and
// writes and at most one payload field. Schemas are registered explicitly
// into a Registry, which maps inbound packets to typed values and back.
package mapping
