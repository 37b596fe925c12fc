// Package client connects to a gedis server and calls actors.
//
// A Client owns a go-redis connection. When an identity is configured,
// every new connection sends AUTH with a freshly signed token before any
// other command, so a rejected handshake makes New fail.
//
// After connecting, the client discovers the registered actors and builds
// a Proxy for each of them:
//
//	c, err := client.New(ctx, client.Config{Addr: "127.0.0.1:6379"})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	greeter, _ := c.Actor("greeter")
//	res, err := greeter.Call(ctx, "add2", 1, 2)
//
// Every call resolves to a domain.ActorResult. A failed call is returned as
// a failure envelope, or as a *RemoteError when the call or the client is
// configured to die on error.
package client
