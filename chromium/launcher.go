package chromium

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/agenttools/browserctl/api"
	"github.com/agenttools/browserctl/browserprocess"
	"github.com/agenttools/browserctl/cdp"
	"github.com/agenttools/browserctl/cdpport"
	"github.com/agenttools/browserctl/env"
	"github.com/agenttools/browserctl/log"
	"github.com/agenttools/browserctl/osext"
)

const (
	// SettleDelay is waited after terminating a prior instance.
	SettleDelay = time.Second
	// ReadinessAttempts bounds the readiness handshake.
	ReadinessAttempts = 30
	// ReadinessInterval separates two readiness attempts.
	ReadinessInterval = 500 * time.Millisecond
	// ProbeTimeout bounds a single readiness attempt.
	ProbeTimeout = 2 * time.Second
)

// ErrNotReady is returned when the spawned instance did not answer on its
// remote debugging port within the readiness budget. The process is left
// running.
var ErrNotReady = errors.New("browser did not become ready")

// State is the step a launch is at.
type State int

// Launch states, in the order a launch goes through them. Ready and
// Failed are terminal.
const (
	StateIdle State = iota
	StateTerminating
	StateSettling
	StateProfilePreparing
	StateSpawning
	StateAwaitingReadiness
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTerminating:
		return "terminating"
	case StateSettling:
		return "settling"
	case StateProfilePreparing:
		return "profile-preparing"
	case StateSpawning:
		return "spawning"
	case StateAwaitingReadiness:
		return "awaiting-readiness"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ProfilePreparer prepares the user data directory of an instance and
// returns its path.
type ProfilePreparer interface {
	Prepare(seeded bool) (string, error)
}

// Launcher launches the browser instance bound to the resolved port.
type Launcher struct {
	port    *cdpport.Resolver
	opts    *LaunchOptions
	profile ProfilePreparer
	logger  *log.Logger

	lookPath  func(string) (string, error)
	terminate func(name string) error
	spawner   browserprocess.Spawner
	probe     func(ctx context.Context, baseURL string) (*cdp.Version, error)
	sleep     func(time.Duration)
	asRoot    bool

	mu    sync.Mutex
	state State
}

var _ api.Launcher = &Launcher{}

// NewLauncher returns a launcher for the instance on the port resolved by
// port, using profile for its user data directory.
func NewLauncher(
	port *cdpport.Resolver, opts *LaunchOptions, profile ProfilePreparer, logger *log.Logger,
) *Launcher {
	if opts == nil {
		opts = &LaunchOptions{}
	}
	return &Launcher{
		port:      port,
		opts:      opts,
		profile:   profile,
		logger:    logger,
		lookPath:  exec.LookPath,
		terminate: osext.TerminateByName,
		spawner:   browserprocess.NewDetachedSpawner(logger),
		probe: func(ctx context.Context, baseURL string) (*cdp.Version, error) {
			return cdp.Probe(ctx, baseURL, ProbeTimeout, logger)
		},
		sleep:  time.Sleep,
		asRoot: runtime.GOOS == "linux" && os.Geteuid() == 0,
	}
}

// State returns the step the last launch reached.
func (l *Launcher) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Launcher) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	l.logger.Debugf("Launcher:launch", "state:%s", s)
}

// Launch terminates any instance running the same browser executable,
// prepares the profile, spawns a detached instance on the resolved port and
// waits until its endpoint accepts connections. The instance keeps running
// when readiness times out.
//
// ctx bounds the individual readiness requests. It does not cut the launch
// short: every step runs and the readiness budget is always spent in full
// on failure.
func (l *Launcher) Launch(ctx context.Context, seeded bool) (_ *api.Instance, err error) {
	l.setState(StateIdle)
	defer func() {
		if err != nil {
			l.setState(StateFailed)
		}
	}()

	path, err := executablePath(l.opts.ExecutablePath, runtime.GOOS, env.Lookup, l.lookPath)
	if err != nil {
		return nil, err
	}
	port := l.port.Resolve()

	l.setState(StateTerminating)
	name := osext.ProcessName(path)
	if err := l.terminate(name); err != nil {
		l.logger.Debugf("Launcher:launch", "terminating %q: %v", name, err)
	}

	l.setState(StateSettling)
	l.sleep(SettleDelay)

	l.setState(StateProfilePreparing)
	dir, err := l.profile.Prepare(seeded)
	if err != nil {
		return nil, fmt.Errorf("preparing profile: %w", err)
	}

	l.setState(StateSpawning)
	args, err := parseArgs(prepareFlags(port.Number, dir, l.opts, l.asRoot))
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	proc, err := l.spawner.Spawn(path, args)
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	l.setState(StateAwaitingReadiness)
	v, err := l.awaitReadiness(ctx, port.URL())
	if err != nil {
		return nil, err
	}
	l.setState(StateReady)

	return &api.Instance{
		Port:        port.Number,
		URL:         port.URL(),
		WsURL:       v.WebSocketDebuggerURL,
		Browser:     v.Browser,
		Executable:  path,
		UserDataDir: dir,
		Pid:         proc.Pid,
		Seeded:      seeded,
	}, nil
}

func (l *Launcher) awaitReadiness(ctx context.Context, url string) (*cdp.Version, error) {
	var lastErr error
	for attempt := 1; attempt <= ReadinessAttempts; attempt++ {
		v, err := l.probe(ctx, url)
		if err == nil {
			l.logger.Debugf("Launcher:awaitReadiness", "url:%q ready after %d attempt(s)", url, attempt)
			return v, nil
		}
		lastErr = err
		l.logger.Debugf("Launcher:awaitReadiness", "url:%q attempt:%d err:%v", url, attempt, err)

		if attempt < ReadinessAttempts {
			l.sleep(ReadinessInterval)
		}
	}

	return nil, fmt.Errorf("%w at %s after %d attempts: %v", ErrNotReady, url, ReadinessAttempts, lastErr) //nolint:errorlint
}
