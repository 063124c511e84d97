// Package qos owns the QoS control data model.
//
// Ownership boundary:
// - sparse per-bearer update records with tagged presence
// - control message batches and their per-producer sequencer
// - advisory range checks and Mbps conversion
//
// Wire encoding lives in internal/protocol; transport in internal/transport.
package qos
