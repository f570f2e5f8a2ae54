// Package protocol groups the wire contract of the chat protocol.
//
// Layout:
// - packet: the wire unit and its header accessors
// - frame: text framing, chunking and reassembly
// - compress: payload inflation
// - mapping: schema-driven packet to variant mapping
// - packets: known variants and their registry
// - templates: outbound packet constructors
package protocol
