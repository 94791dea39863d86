// Package registry owns the live connection set: one Conn per websocket,
// with its lifecycle state and optional verified identity. The roster of
// online users is a projection of this set, never separate state.
package registry
