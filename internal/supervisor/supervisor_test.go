package supervisor

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestEnsureBrokerSucceedsWhenAlreadyListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	s := New(ln.Addr().String(), "", nil, nil)
	if err := s.EnsureBroker(nil); err != nil {
		t.Fatalf("EnsureBroker: %v", err)
	}
	if s.ownsBroker {
		t.Error("should not claim ownership of an already-running broker")
	}
}

func TestEnsureBrokerFailsWhenUnreachableAndNoBundle(t *testing.T) {
	s := New("127.0.0.1:1", "", nil, nil) // port 1 is reserved, never listening
	s2 := &Supervisor{BrokerAddr: s.BrokerAddr}

	start := time.Now()
	err := s2.EnsureBroker(nil)
	if err == nil {
		t.Fatal("expected error when broker unreachable")
	}
	if time.Since(start) < BrokerDialTimeout {
		t.Error("expected EnsureBroker to wait out the full dial timeout before giving up")
	}
}

func TestLaunchWorkerRequiresBinary(t *testing.T) {
	s := New("127.0.0.1:0", "/nonexistent-binary-xyz", nil, nil)
	if err := s.LaunchWorker(context.Background()); err == nil {
		t.Fatal("expected error launching a nonexistent binary")
	}
}

func TestWaitWithoutLaunchReturnsError(t *testing.T) {
	s := New("127.0.0.1:0", "", nil, nil)
	if err := s.Wait(); err == nil {
		t.Fatal("expected error when Wait is called before LaunchWorker")
	}
}

func TestStopWithoutLaunchDoesNotPanic(t *testing.T) {
	s := New("127.0.0.1:0", "", nil, nil)
	s.Stop()
}
