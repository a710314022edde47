// Package supervisor implements the Supervisor (spec.md §4.7): it checks
// broker reachability, launches one worker subprocess, and tears both down
// cleanly on SIGINT/SIGTERM, grounded on the teacher's runtime.GOOS-switched
// exec.Command dispatch in internal/shared/browser.go.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// BrokerDialTimeout is how long the supervisor waits for the broker to
// accept connections before giving up, per spec.md §4.7.
const BrokerDialTimeout = 5 * time.Second

// Supervisor starts and supervises one worker subprocess alongside a
// reachability check for the broker it depends on.
type Supervisor struct {
	BrokerAddr   string
	WorkerBinary string
	WorkerArgs   []string
	Logger       *log.Logger

	workerCmd *exec.Cmd
	// ownsBroker is set only when this supervisor had to launch the broker
	// itself (e.g. a bundled redis-server for local/dev use); it never kills
	// a broker it did not start (spec.md §4.7).
	ownsBroker bool
	brokerCmd  *exec.Cmd
}

// New returns a Supervisor targeting brokerAddr (host:port) and ready to
// launch workerBinary with workerArgs.
func New(brokerAddr, workerBinary string, workerArgs []string, logger *log.Logger) *Supervisor {
	return &Supervisor{BrokerAddr: brokerAddr, WorkerBinary: workerBinary, WorkerArgs: workerArgs, Logger: logger}
}

// EnsureBroker waits up to BrokerDialTimeout for the broker to accept
// connections. If bundledBrokerCmd is non-nil and the broker is not yet
// listening, it launches the bundled broker and tracks ownership so Stop
// knows to kill it.
func (s *Supervisor) EnsureBroker(bundledBrokerCmd *exec.Cmd) error {
	if s.dialOnce() {
		return nil
	}

	if bundledBrokerCmd != nil {
		if err := bundledBrokerCmd.Start(); err != nil {
			return fmt.Errorf("start bundled broker: %w", err)
		}
		s.brokerCmd = bundledBrokerCmd
		s.ownsBroker = true
	}

	deadline := time.Now().Add(BrokerDialTimeout)
	for time.Now().Before(deadline) {
		if s.dialOnce() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("broker at %s not reachable after %s", s.BrokerAddr, BrokerDialTimeout)
}

func (s *Supervisor) dialOnce() bool {
	conn, err := net.DialTimeout("tcp", s.BrokerAddr, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// LaunchWorker starts the worker subprocess, inheriting the supervisor's
// stdout/stderr.
func (s *Supervisor) LaunchWorker(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.WorkerBinary, s.WorkerArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch worker %s: %w", s.WorkerBinary, err)
	}
	s.workerCmd = cmd
	if s.Logger != nil {
		s.Logger.Info("worker launched", "binary", s.WorkerBinary, "pid", cmd.Process.Pid)
	}
	return nil
}

// Wait blocks until the worker subprocess exits, returning its error (nil
// on a clean exit).
func (s *Supervisor) Wait() error {
	if s.workerCmd == nil {
		return fmt.Errorf("worker was not launched")
	}
	return s.workerCmd.Wait()
}

// Run launches the worker and blocks until either the worker exits or a
// termination signal is received, tearing down cleanly either way. Returns
// a non-zero-worthy error on broker-unreachable or fatal worker failure,
// per spec.md §6 "Exit codes".
func (s *Supervisor) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)

	if err := s.LaunchWorker(ctx); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()

	select {
	case err := <-done:
		s.teardown()
		return err
	case sig := <-sigCh:
		if s.Logger != nil {
			s.Logger.Info("signal received, shutting down", "signal", sig.String())
		}
		s.Stop()
		<-done
		return nil
	}
}

// Stop terminates the worker (if running) and, only if this supervisor
// started the broker itself, the broker too.
func (s *Supervisor) Stop() {
	if s.workerCmd != nil && s.workerCmd.Process != nil {
		_ = s.workerCmd.Process.Signal(syscall.SIGTERM)
	}
	s.teardown()
}

func (s *Supervisor) teardown() {
	if s.ownsBroker && s.brokerCmd != nil && s.brokerCmd.Process != nil {
		_ = s.brokerCmd.Process.Signal(syscall.SIGTERM)
	}
}

// notifySignals registers the termination signals this platform supports;
// SIGBREAK only exists on Windows (grounded on internal/shared/browser.go's
// runtime.GOOS switch).
func notifySignals(ch chan<- os.Signal) {
	sigs := []os.Signal{os.Interrupt, syscall.SIGTERM}
	if runtime.GOOS == "windows" {
		sigs = append(sigs, syscall.Signal(0x15)) // SIGBREAK
	}
	signal.Notify(ch, sigs...)
}
