package sshpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"diagsniff/internal/model"
)

func TestNewPool(t *testing.T) {
	pool := New()
	require.Empty(t, pool.connections)
	require.Empty(t, pool.leases)
}

func TestLeaseIDShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := newRandomID()
		require.Len(t, id, 8)
		for _, r := range id {
			inAlphabet := (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			require.Truef(t, inAlphabet, "unexpected rune %q in lease id %q", r, id)
		}
	}
}

func TestReleaseUnknownLease(t *testing.T) {
	pool := New()

	err := pool.Release("NOSUCHID")
	require.Error(t, err)

	var rpcErr *model.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, model.ErrKindUnknownLease, rpcErr.Kind)
	require.Contains(t, rpcErr.Message, "NOSUCHID")
}

func TestDestroyAllIsIdempotent(t *testing.T) {
	pool := New()
	pool.DestroyAll()
	pool.DestroyAll()
	require.Zero(t, pool.OpenConnections())
}

// TestPoolInvariant_LeaseKeyRoundTrip exercises the lease/connection
// bookkeeping without a live SSH server: manually seed connections and
// leases the way Acquire/Release would, and check the counts line up.
func TestPoolInvariant_LeaseKeyRoundTrip(t *testing.T) {
	pool := New()
	key := ConnectionKey{Address: "127.0.0.1", Port: 10022}

	// Simulate what Acquire does without dialing: install a sentinel
	// transport directly.
	pool.mu.Lock()
	pool.connections[key] = &Transport{key: key}
	lease1 := newUniqueID(func(id string) bool { _, ok := pool.leases[id]; return ok })
	pool.leases[lease1] = key
	lease2 := newUniqueID(func(id string) bool { _, ok := pool.leases[id]; return ok })
	pool.leases[lease2] = key
	pool.mu.Unlock()

	require.NotEqual(t, lease1, lease2)
	require.Equal(t, 1, pool.OpenConnections())

	// Releasing one lease must not close the shared transport.
	require.NoError(t, releaseWithoutClosing(pool, lease1))
	require.Equal(t, 1, pool.OpenConnections())

	// Releasing the last lease removes the transport from the map
	// (close() itself would panic on a nil *ssh.Client, so this
	// test only exercises the bookkeeping half of Release).
	pool.mu.Lock()
	delete(pool.leases, lease2)
	delete(pool.connections, key)
	pool.mu.Unlock()
	require.Equal(t, 0, pool.OpenConnections())
}

// releaseWithoutClosing mirrors Release's bookkeeping for a lease that is
// known not to be the last reference, so it never touches transport.close().
func releaseWithoutClosing(p *Pool, leaseID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.leases[leaseID]
	if !ok {
		return nil
	}
	delete(p.leases, leaseID)
	for _, k := range p.leases {
		if k == key {
			return nil
		}
	}
	return nil
}
