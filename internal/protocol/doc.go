// Package protocol owns the QoS control wire contract.
//
// Ownership boundary:
// - codec registry (protobuf default, fixed-header tlv framing)
// - protobuf encoding compatible with the RAN QosControl receiver
// - frame/header and tlv payload primitives (subpackages)
//
// Field numbers for the protobuf codec are documented in proto/control_qos.proto.
package protocol
