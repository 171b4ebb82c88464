package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/llm"
)

// snapshot is one immutable view of the tool catalog. Readers load the
// current snapshot atomically and never see a half-refreshed registry.
//
// Snapshots are reference-counted: the registry holds one reference while
// the snapshot is current, and every in-flight tool call holds one for its
// duration. Services close only when the last reference drops, so a refresh
// never tears down a session another turn is still calling into.
type snapshot struct {
	defs     []llm.ToolDef
	byName   map[string]Service
	services []Service

	refs   atomic.Int64
	logger *zap.Logger
}

func newSnapshot(logger *zap.Logger) *snapshot {
	s := &snapshot{
		byName: make(map[string]Service),
		logger: logger,
	}
	s.refs.Store(1)
	return s
}

// acquire takes a reference for one tool call. It fails when the snapshot
// has already been retired and drained.
func (s *snapshot) acquire() bool {
	for {
		n := s.refs.Load()
		if n == 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops one reference, closing the services on the last drop.
func (s *snapshot) release() {
	if s.refs.Add(-1) == 0 {
		closeServices(s, s.logger)
	}
}

// Registry maintains the process-wide mapping from tool name to the service
// that executes it. Refreshes rebuild a fresh snapshot off to the side and
// swap it in atomically; concurrent refreshes collapse into one.
type Registry struct {
	configPath string
	logger     *zap.Logger

	current    atomic.Pointer[snapshot]
	refreshing atomic.Bool

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

// NewRegistry builds a registry from the tools config at configPath and
// performs the initial synchronous refresh. An empty path yields a registry
// with only the builtin service.
func NewRegistry(ctx context.Context, configPath string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		configPath: configPath,
		logger:     logger,
	}
	r.current.Store(newSnapshot(logger))

	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh reloads the config, reconnects services and swaps in a new
// snapshot. If a refresh is already in flight the call returns immediately;
// the in-flight refresh will surface whatever it finds.
func (r *Registry) Refresh(ctx context.Context) error {
	if !r.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer r.refreshing.Store(false)

	cfg, err := LoadConfig(r.configPath)
	if err != nil {
		return err
	}

	next, err := r.buildSnapshot(ctx, cfg)
	if err != nil {
		return err
	}

	prev := r.current.Swap(next)
	prev.release()

	r.logger.Info("tool registry refreshed",
		zap.Int("services", len(next.services)),
		zap.Int("tools", len(next.defs)),
	)
	return nil
}

func (r *Registry) buildSnapshot(ctx context.Context, cfg Config) (*snapshot, error) {
	next := newSnapshot(r.logger)

	if cfg.Builtin.Enabled {
		next.services = append(next.services, NewBuiltinService())
	}
	for _, server := range cfg.MCP {
		svc, err := ConnectMCPService(ctx, server.Name, server.Endpoint)
		if err != nil {
			closeServices(next, r.logger)
			return nil, err
		}
		next.services = append(next.services, svc)
	}

	for _, svc := range next.services {
		defs, err := svc.Tools(ctx)
		if err != nil {
			closeServices(next, r.logger)
			return nil, err
		}
		for _, def := range defs {
			if _, taken := next.byName[def.Name]; taken {
				r.logger.Warn("duplicate tool name, keeping first registration",
					zap.String("tool", def.Name),
					zap.String("service", svc.Name()),
				)
				continue
			}
			next.byName[def.Name] = svc
			next.defs = append(next.defs, def)
		}
	}

	return next, nil
}

// Watch reloads the registry whenever the tools config file changes on disk.
// It is a no-op when the registry has no config path.
func (r *Registry) Watch() error {
	if r.configPath == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil || r.closed {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	// Watch the directory: editors frequently replace the file, which
	// drops a watch set on the file itself.
	if err := watcher.Add(filepath.Dir(r.configPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(r.configPath), err)
	}

	r.watcher = watcher
	r.done = make(chan struct{})

	go r.watchLoop(watcher, r.done)
	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	target := filepath.Clean(r.configPath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.logger.Info("tools config changed, refreshing", zap.String("path", target))
			if err := r.Refresh(context.Background()); err != nil {
				r.logger.Error("tool registry refresh failed", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("tools config watcher error", zap.Error(err))
		case <-done:
			return
		}
	}
}

// Resolve returns the service registered for a tool name. Unknown names
// resolve to nothing; callers must treat that as a failed call, not a panic.
// The returned service leases its snapshot for the duration of each call,
// so a concurrent refresh cannot close it mid-call.
func (r *Registry) Resolve(name string) (Service, bool) {
	snap := r.current.Load()
	svc, ok := snap.byName[name]
	if !ok {
		return nil, false
	}
	return &leasedService{svc: svc, snap: snap}, true
}

// leasedService wraps a snapshot's service so every call holds a snapshot
// reference while it runs.
type leasedService struct {
	svc  Service
	snap *snapshot
}

func (l *leasedService) Name() string {
	return l.svc.Name()
}

func (l *leasedService) Tools(ctx context.Context) ([]llm.ToolDef, error) {
	if !l.snap.acquire() {
		return nil, fmt.Errorf("tool service %s has been retired", l.svc.Name())
	}
	defer l.snap.release()
	return l.svc.Tools(ctx)
}

func (l *leasedService) Call(ctx context.Context, name string, args map[string]any) (llm.ToolResult, error) {
	if !l.snap.acquire() {
		return llm.ToolResult{}, fmt.Errorf("tool service %s has been retired", l.svc.Name())
	}
	defer l.snap.release()
	return l.svc.Call(ctx, name, args)
}

// Close is a no-op: the snapshot owns the underlying service's lifetime.
func (l *leasedService) Close() error {
	return nil
}

// Defs returns the tool definitions to advertise to a provider. A non-empty
// selection filters by name; unknown selected names are silently omitted.
func (r *Registry) Defs(selected []string) []llm.ToolDef {
	snap := r.current.Load()
	if len(selected) == 0 {
		out := make([]llm.ToolDef, len(snap.defs))
		copy(out, snap.defs)
		return out
	}

	want := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		want[name] = struct{}{}
	}

	var out []llm.ToolDef
	for _, def := range snap.defs {
		if _, ok := want[def.Name]; ok {
			out = append(out, def)
		}
	}
	return out
}

// Close stops the watcher and closes every connected service.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	watcher := r.watcher
	done := r.done
	r.watcher = nil
	r.done = nil
	r.mu.Unlock()

	if done != nil {
		close(done)
	}
	if watcher != nil {
		watcher.Close()
	}

	r.current.Swap(newSnapshot(r.logger)).release()
	return nil
}

func closeServices(snap *snapshot, logger *zap.Logger) {
	if snap == nil {
		return
	}
	for _, svc := range snap.services {
		if err := svc.Close(); err != nil {
			logger.Warn("closing tool service",
				zap.String("service", svc.Name()),
				zap.Error(err),
			)
		}
	}
}
