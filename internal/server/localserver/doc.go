// Package localserver provides the local management listener.
//
// It serves the Redis actor protocol on a Unix domain socket. Access is
// controlled by the socket file permissions, so connections are never
// asked to AUTH even when the TCP listener requires it.
package localserver
