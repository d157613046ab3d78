// Package integration contains end-to-end tests for the portal client.
//
// These tests run the real client stack against an in-process fake of the
// portal backend and an in-memory Redis server, covering the anti-forgery
// handshake, cookie sessions, the Redis-backed reference cache and the
// navigation guard together.
package integration
