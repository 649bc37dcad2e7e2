// Package sshpool implements the shared SSH connection pool: one
// transport per (address, port), shared across any number of
// lease-counted callers, destroyed when its last lease is released.
//
// Pool is an explicit dependency rather than a lazily-constructed
// global singleton: the supervisor constructs exactly one Pool at
// subordinate process startup and hands it to every worker it creates.
package sshpool

import (
	"context"
	"fmt"
	"sync"

	"diagsniff/internal/model"
)

// ConnectionKey identifies a shared transport. Two Acquire calls with
// the same key share one transport regardless of the credentials
// supplied on the second call — the first caller's credentials stand.
type ConnectionKey struct {
	Address string
	Port    int
}

// Pool owns every open transport for one process. All mutations to
// connections and leases happen under a single mutex; transport
// establishment happens while that mutex is held, so concurrent first
// acquisitions for the same key are serialized into exactly one dial.
// Authentication cost dominates, so the serialization is acceptable.
type Pool struct {
	mu          sync.Mutex
	connections map[ConnectionKey]*Transport
	leases      map[string]ConnectionKey
}

// New constructs an empty pool. Call once per supervisor process.
func New() *Pool {
	return &Pool{
		connections: make(map[ConnectionKey]*Transport),
		leases:      make(map[string]ConnectionKey),
	}
}

// Acquire returns a lease on the shared transport for (address, port),
// dialing a new one if none exists yet. Fails with ErrKindConnectFailed
// if the transport cannot be established; pool state is unchanged on
// failure (no lease is ever created for a dial that didn't succeed).
func (p *Pool) Acquire(ctx context.Context, address string, port int, username, password string) (leaseID string, transport *Transport, err error) {
	key := ConnectionKey{Address: address, Port: port}

	p.mu.Lock()
	defer p.mu.Unlock()

	transport, exists := p.connections[key]
	if !exists {
		transport, err = dial(key, username, password)
		if err != nil {
			return "", nil, model.NewRPCError(model.ErrKindConnectFailed,
				"failed to connect to %s:%d: %v", address, port, err)
		}
		p.connections[key] = transport
	}

	leaseID = newUniqueID(func(id string) bool {
		_, ok := p.leases[id]
		return ok
	})
	p.leases[leaseID] = key

	return leaseID, transport, nil
}

// Release revokes a lease. If it was the last lease referencing its
// key, the underlying transport is closed and removed.
func (p *Pool) Release(leaseID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key, ok := p.leases[leaseID]
	if !ok {
		return model.NewRPCError(model.ErrKindUnknownLease, "unknown lease id %q", leaseID)
	}
	delete(p.leases, leaseID)

	for _, k := range p.leases {
		if k == key {
			// another lease still references this key; transport stays open
			return nil
		}
	}

	transport, ok := p.connections[key]
	if !ok {
		return fmt.Errorf("sshpool: internal inconsistency: connection for %v missing", key)
	}
	delete(p.connections, key)
	return transport.close()
}

// DestroyAll closes every transport and invalidates every lease,
// atomically with respect to the pool's mutex. Idempotent: a second
// call finds nothing to do.
func (p *Pool) DestroyAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, transport := range p.connections {
		transport.close()
	}
	p.connections = make(map[ConnectionKey]*Transport)
	p.leases = make(map[string]ConnectionKey)
}

// OpenConnections reports the number of distinct open transports. It
// always equals the number of distinct keys referenced by live leases.
func (p *Pool) OpenConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.connections)
}

// ScopedTransport pairs a leased Transport with the release function
// that must eventually be called to give it back.
type ScopedTransport struct {
	Transport *Transport
	release   func() error
}

// Release gives back the lease. Safe to call multiple times; only the
// first call has effect.
func (s *ScopedTransport) Release() error {
	if s.release == nil {
		return nil
	}
	release := s.release
	s.release = nil
	return release()
}

// Scoped acquires a lease and returns a handle whose Release can be
// deferred, so the lease is given back on every exit path.
func (p *Pool) Scoped(ctx context.Context, address string, port int, username, password string) (*ScopedTransport, error) {
	leaseID, transport, err := p.Acquire(ctx, address, port, username, password)
	if err != nil {
		return nil, err
	}
	return &ScopedTransport{
		Transport: transport,
		release:   func() error { return p.Release(leaseID) },
	}, nil
}
