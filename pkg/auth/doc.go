// Package auth provides credential handling for the kwak server: JWT
// issuance and verification, bcrypt password hashing, login rate limiting,
// and username normalization.
package auth
