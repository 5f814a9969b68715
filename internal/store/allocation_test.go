package store

import (
	"context"
	"errors"
	"testing"

	"github.com/wirewarden/wirewarden/internal/wgerr"
)

// TestNetworkFullOnExhaustion is spec.md §8 scenario 6, exercised
// end-to-end through the store's transactional allocation path rather
// than the allocator package in isolation.
func TestNetworkFullOnExhaustion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	n, err := s.CreateNetwork(ctx, "tiny", "10.9.0.0/30", nil, 0)
	if err != nil {
		t.Fatalf("CreateNetwork: %v", err)
	}
	port := 51820
	if _, err := s.CreateServer(ctx, n.ID, "hub", false, nil, &port); err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	if _, err := s.CreateClient(ctx, n.ID, "first"); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if _, err := s.CreateClient(ctx, n.ID, "second"); !errors.Is(err, wgerr.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

// TestOffsetsAreDistinctWithinNetwork is the first half of spec.md §8's
// universal invariant: offsets assigned within one network never
// collide between servers and clients.
func TestOffsetsAreDistinctWithinNetwork(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	n, err := s.CreateNetwork(ctx, "offsets", "10.10.0.0/24", nil, 0)
	if err != nil {
		t.Fatalf("CreateNetwork: %v", err)
	}
	port := 51820
	sv, err := s.CreateServer(ctx, n.ID, "hub", false, nil, &port)
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	cl, err := s.CreateClient(ctx, n.ID, "laptop")
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if sv.Offset == cl.Offset {
		t.Fatalf("expected distinct offsets, both got %d", sv.Offset)
	}
	if sv.Offset == 0 || cl.Offset == 0 {
		t.Fatalf("offset 0 is reserved and must never be allocated, got server=%d client=%d", sv.Offset, cl.Offset)
	}
}
