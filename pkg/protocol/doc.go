// Package protocol defines the event envelope and payload types exchanged
// between the kwak server and its websocket clients, plus the shared
// Identity and ChatMessage types used across the server packages.
package protocol
