//go:build unix

package storage

import "testing"

func TestOpenSharedRequiresLeadingSlash(t *testing.T) {
	if _, err := OpenShared("no-leading-slash", 64); err == nil {
		t.Fatal("expected error for a name without a leading '/'")
	}
}

func TestOpenSharedRoundTripAndUnlink(t *testing.T) {
	name := "/test-shared-roundtrip"
	defer UnlinkShared(name)

	a, err := OpenShared(name, 4096)
	if err != nil {
		t.Fatalf("OpenShared (first): %v", err)
	}
	defer a.Close()

	b, err := OpenShared(name, 4096)
	if err != nil {
		t.Fatalf("OpenShared (second): %v", err)
	}
	defer b.Close()

	a.Bytes()[10] = 0x7a
	if got := b.Bytes()[10]; got != 0x7a {
		t.Fatalf("b observed %x at offset 10, want a's write to be visible via the mapped file", got)
	}
}

func TestOpenSharedSizeMismatch(t *testing.T) {
	name := "/test-shared-size-mismatch"
	defer UnlinkShared(name)

	a, err := OpenShared(name, 4096)
	if err != nil {
		t.Fatalf("OpenShared (first): %v", err)
	}
	defer a.Close()

	if _, err := OpenShared(name, 8192); err == nil {
		t.Fatal("expected size-mismatch error")
	}
}

func TestUnlinkSharedToleratesMissingObject(t *testing.T) {
	if err := UnlinkShared("/test-shared-never-created"); err != nil {
		t.Fatalf("UnlinkShared on a name that was never created: %v", err)
	}
}
