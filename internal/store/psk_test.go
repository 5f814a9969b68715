package store

import (
	"context"
	"testing"
)

// TestGetOrCreatePSKIsIdempotent exercises spec.md §8's universal
// invariant: for every (server, client) pair there is exactly one PSK
// record after any render involving that pair, even under repeated
// calls.
func TestGetOrCreatePSKIsIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	n, err := s.CreateNetwork(ctx, "psk-net", "10.4.0.0/24", nil, 0)
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

	first, err := s.GetOrCreatePSK(ctx, sv.ID, cl.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePSK: %v", err)
	}
	second, err := s.GetOrCreatePSK(ctx, sv.ID, cl.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePSK: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same PSK record, got %v and %v", first.ID, second.ID)
	}
}

// TestRotatePresharedKeysReplacesEveryRow is spec.md §8 scenario 5.
func TestRotatePresharedKeysReplacesEveryRow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	n, err := s.CreateNetwork(ctx, "rotate-net", "10.5.0.0/24", nil, 0)
	if err != nil {
		t.Fatalf("CreateNetwork: %v", err)
	}
	port := 51820
	sv1, err := s.CreateServer(ctx, n.ID, "hub1", false, nil, &port)
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	sv2, err := s.CreateServer(ctx, n.ID, "hub2", false, nil, &port)
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	cl, err := s.CreateClient(ctx, n.ID, "laptop")
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	before1, err := s.GetOrCreatePSK(ctx, sv1.ID, cl.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePSK: %v", err)
	}
	before2, err := s.GetOrCreatePSK(ctx, sv2.ID, cl.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePSK: %v", err)
	}

	rotated, err := s.RotatePresharedKeys(ctx, cl.ID)
	if err != nil {
		t.Fatalf("RotatePresharedKeys: %v", err)
	}
	if rotated != 2 {
		t.Fatalf("expected 2 rows rotated, got %d", rotated)
	}

	after1, err := s.GetOrCreatePSK(ctx, sv1.ID, cl.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePSK: %v", err)
	}
	after2, err := s.GetOrCreatePSK(ctx, sv2.ID, cl.ID)
	if err != nil {
		t.Fatalf("GetOrCreatePSK: %v", err)
	}

	if string(before1.Ciphertext) == string(after1.Ciphertext) {
		t.Fatal("expected ciphertext to change after rotation for sv1")
	}
	if string(before2.Ciphertext) == string(after2.Ciphertext) {
		t.Fatal("expected ciphertext to change after rotation for sv2")
	}
}
