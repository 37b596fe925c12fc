// Package cmap provides a sharded concurrent map.
//
// Keys are spread over a fixed set of shards, each guarded by its own
// RWMutex. The RESP server keeps its open connections and its
// per-client rate limiters in these maps, where many goroutines add and
// remove entries at once. Idle rate limiters are pruned with DeleteIf.
//
// Usage:
//
//	conns := cmap.New[string, *Conn]()
//	conns.Set(id, c)
//	limiter := limiters.GetOrCreate(ip, newLimiter)
package cmap
