// Package redisserver serves actor calls over the Redis wire protocol.
//
// Every request is a RESP array of bulk strings:
//
//	[actor, method, payload...]
//
// The reply is a single RESP value. Successful calls reply with the return
// value encoded by WriteValue; failed calls reply with the JSON failure
// envelope in a bulk string.
//
// Connection commands are answered before dispatch:
//   - PING [message], QUIT
//   - AUTH <token>: signed handshake, see service.HandshakeService
//   - HELLO, CLIENT: rejected, so Redis clients stay on RESP2
//
// Commands with fewer than two elements are ignored.
package redisserver
