// Package rpcfixture provides a throwaway gRPC server for exercising an RPC
// client in automated tests.
//
// The fixture exposes a single operation, Transform, which parses a string of
// the form "<first> <last> <attr,attr,...>" into a [Person]. It is meant to be
// started by a test, called once and then left to stop itself: a successful
// call schedules shutdown after [Config.ShutdownDelay], and a watchdog stops
// the fixture after [Config.Watchdog] if no call arrives. Shutdown is
// signalled through [Fixture.Done] rather than by exiting the process, so the
// host decides what stopping means.
//
// Requests and responses use protobuf well-known types (StringValue in,
// Struct out), so clients need no generated code.
package rpcfixture
