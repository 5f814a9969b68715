//go:build linux

package netlink

import (
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ Driver = (*LinkDriver)(nil)

func TestDeleteLinkNonExistentIsIdempotent(t *testing.T) {
	d := New(discardLogger())

	err := d.DeleteLink("wgwarden-test-nonexistent")
	if err != nil {
		t.Skipf("skipping: requires elevated privileges: %v", err)
	}
}

func TestEnsureLinkRequiresPrivileges(t *testing.T) {
	d := New(discardLogger())

	err := d.EnsureLink("wgwarden-test-priv")
	if err == nil {
		_ = d.DeleteLink("wgwarden-test-priv")
		return
	}

	if !Is(err, KindPermissionDenied) && !Is(err, KindFatal) && !Is(err, KindTransient) {
		t.Errorf("expected a categorized Driver error, got %v (%T)", err, err)
	}
}

func TestSetUpNonExistentIsNotFound(t *testing.T) {
	d := New(discardLogger())

	err := d.SetUp("wgwarden-test-nonexistent")
	if err == nil {
		t.Fatal("expected error for non-existent interface")
	}
	if !Is(err, KindNotFound) {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}

func TestSetAddressesNonExistentIsNotFound(t *testing.T) {
	d := New(discardLogger())

	err := d.SetAddresses("wgwarden-test-nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for non-existent interface")
	}
	if !Is(err, KindNotFound) {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}
