// Package transport carries encoded control frames over ZeroMQ PUB/SUB.
//
// A Publisher owns its endpoint exclusively: ipc endpoints are guarded by an
// flock on "<path>.lock", so a second producer fails at Bind instead of
// silently taking over the socket path. Delivery is fire-and-forget with no
// acknowledgement, retry or replay for late subscribers.
package transport
