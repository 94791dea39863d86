// Package errors provides standardized error definitions for the kwak
// server. All error definitions are centralized here so the session,
// relay, and HTTP layers report failures consistently.
package errors
