package redisx

import (
	"testing"
	"time"
)

func TestNewAppliesTimeouts(t *testing.T) {
	c := New("localhost:6379")
	defer c.Close()

	opts := c.Options()
	if opts.Addr != "localhost:6379" {
		t.Fatalf("addr = %q", opts.Addr)
	}
	if opts.DialTimeout != 2*time.Second || opts.ReadTimeout != 2*time.Second || opts.WriteTimeout != 2*time.Second {
		t.Fatalf("timeouts = %v/%v/%v, want 2s each",
			opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout)
	}
}
