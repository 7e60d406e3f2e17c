package tor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is how long the daemon may take to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// Daemon manages an embedded Tor process started with tornago.
//
// Starting takes one to three minutes while Tor downloads directory
// information and builds its first circuits.
type Daemon struct {
	startupTimeout time.Duration
	logger         *slog.Logger

	mu          sync.Mutex
	process     *tornago.TorProcess
	socksAddr   string
	controlAddr string
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// WithDaemonLogger sets the logger for lifecycle messages.
func WithDaemonLogger(logger *slog.Logger) DaemonOption {
	return func(d *Daemon) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDaemon creates a daemon manager. Call Start to launch Tor.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{
		startupTimeout: DefaultStartupTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor and waits until it has bootstrapped.
//
// tornago blocks until bootstrap completes, so the launch runs in its own
// goroutine. If ctx is cancelled first, Start returns at once and the
// process is stopped as soon as it comes up.
func (d *Daemon) Start(ctx context.Context) error {
	// ":0" lets the OS pick free ports.
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	type started struct {
		process *tornago.TorProcess
		err     error
	}
	done := make(chan started, 1)
	go func() {
		process, err := tornago.StartTorDaemon(launchCfg)
		done <- started{process, err}
	}()

	d.logger.Info("starting embedded Tor daemon", "timeout", d.startupTimeout)
	select {
	case s := <-done:
		if s.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", s.err)
		}
		d.mu.Lock()
		d.process = s.process
		d.socksAddr = s.process.SocksAddr()
		d.controlAddr = s.process.ControlAddr()
		d.mu.Unlock()
		d.logger.Info("embedded Tor daemon ready", "socks", d.socksAddr)
		return nil
	case <-ctx.Done():
		go func() {
			if s := <-done; s.err == nil {
				_ = s.process.Stop() //nolint:errcheck // best effort cleanup
			}
		}()
		return ctx.Err()
	}
}

// Stop shuts the daemon down. It is safe to call on a stopped or never
// started Daemon.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	process := d.process
	d.process = nil
	d.socksAddr, d.controlAddr = "", ""
	d.mu.Unlock()

	if process == nil {
		return nil
	}
	return process.Stop()
}

// SocksAddr returns the SOCKS5 address, or "" when not running.
func (d *Daemon) SocksAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.socksAddr
}

// ControlAddr returns the control port address, or "" when not running.
func (d *Daemon) ControlAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.controlAddr
}

// IsRunning reports whether the daemon has been started and not stopped.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.process != nil
}

// NewClient creates a Client for the daemon's SOCKS port. Certificate
// checks are relaxed because onion services rarely have CA-signed
// certificates.
func (d *Daemon) NewClient(timeout time.Duration) (*Client, error) {
	addr := d.SocksAddr()
	if addr == "" {
		return nil, ErrDaemonNotRunning
	}
	return NewClient(addr, timeout, WithInsecureTLS(true))
}
