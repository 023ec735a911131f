package storage

import "testing"

func TestOpenInProcessSharesBackingArray(t *testing.T) {
	name := "test-inprocess-channel"
	a, err := OpenInProcess(name, 64)
	if err != nil {
		t.Fatalf("OpenInProcess (first): %v", err)
	}
	defer a.Close()

	b, err := OpenInProcess(name, 64)
	if err != nil {
		t.Fatalf("OpenInProcess (second): %v", err)
	}
	defer b.Close()

	a.Bytes()[0] = 0x42
	if got := b.Bytes()[0]; got != 0x42 {
		t.Fatalf("b observed %x, want a's write to be visible", got)
	}
}

func TestOpenInProcessSizeMismatch(t *testing.T) {
	name := "test-inprocess-size-mismatch"
	a, err := OpenInProcess(name, 64)
	if err != nil {
		t.Fatalf("OpenInProcess (first): %v", err)
	}
	defer a.Close()

	if _, err := OpenInProcess(name, 128); err == nil {
		t.Fatal("OpenInProcess with a different size: expected error, got nil")
	}
}

func TestOpenInProcessReleasedAfterLastClose(t *testing.T) {
	name := "test-inprocess-refcount"
	a, err := OpenInProcess(name, 32)
	if err != nil {
		t.Fatalf("OpenInProcess (first): %v", err)
	}
	b, err := OpenInProcess(name, 32)
	if err != nil {
		t.Fatalf("OpenInProcess (second): %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close a: %v", err)
	}

	// b still holds a reference; a fresh open with a different size must
	// still conflict with the still-live entry.
	if _, err := OpenInProcess(name, 16); err == nil {
		t.Fatal("expected size mismatch while b is still open")
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close b: %v", err)
	}

	// Now that both handles are gone, the name is free to be reopened with
	// a different size.
	c, err := OpenInProcess(name, 16)
	if err != nil {
		t.Fatalf("OpenInProcess after full release: %v", err)
	}
	defer c.Close()
}
