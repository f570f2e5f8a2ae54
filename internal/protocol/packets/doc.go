// Package packets holds the typed packet variants known to the client and
// the registry that binds them to their wire commands.
package packets
