package mount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/procmgr"
)

var (
	ErrMountNotFound    = errors.New("mount not found")
	ErrMountBusy        = errors.New("mount is active, unmount it first")
	ErrNoDriveAvailable = errors.New("no available drive letters")
	ErrNotMounted       = errors.New("mount has no running process")
)

const (
	stopGrace         = 5 * time.Second
	stderrCaptureSize = 4096
	discoveredPrefix  = "_discovered_"
)

// ManagerOptions wires the mount manager to its collaborators. Zero values
// fall back to the real system implementations.
type ManagerOptions struct {
	RclonePath       string
	RcloneConfigPath string
	CacheDir         string
	StorePath        string
	UnmountOnExit    bool

	Query      procmgr.ProcessQuery
	Supervisor *procmgr.Supervisor
	Probe      DriveProbe
	Terminate  procmgr.TerminateFunc
	Alive      func(pid int32) bool

	Bus    *events.Bus
	Logger *slog.Logger
}

// BatchResult counts the outcome of a bulk operation
type BatchResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Manager owns the mount registry: config mounts keyed by remote name and
// discovered mounts keyed by drive.
type Manager struct {
	opts    ManagerOptions
	logger  *slog.Logger
	mounts  map[string]*Mount
	workers map[string]*procmgr.Handle
	mu      sync.Mutex
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RclonePath == "" {
		opts.RclonePath = "rclone"
	}
	if opts.Query == nil {
		opts.Query = procmgr.NewSystemQuery()
	}
	if opts.Probe == nil {
		opts.Probe = SystemDrives{}
	}
	if opts.Terminate == nil {
		opts.Terminate = procmgr.Terminate
	}
	if opts.Alive == nil {
		opts.Alive = procmgr.IsRunning
	}
	if opts.Supervisor == nil {
		opts.Supervisor = procmgr.NewSupervisor(opts.Query, opts.Probe, opts.Logger)
	}

	return &Manager{
		opts:    opts,
		logger:  opts.Logger.With("component", "mount"),
		mounts:  make(map[string]*Mount),
		workers: make(map[string]*procmgr.Handle),
	}
}

// Load replaces the config mounts with the persisted registry and reconciles
// them against the live system
func (m *Manager) Load(ctx context.Context) error {
	loaded, err := LoadMounts(m.opts.StorePath, m.logger)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for key, mnt := range m.mounts {
		if !mnt.IsDiscovered() {
			delete(m.mounts, key)
		}
	}
	for _, mnt := range loaded {
		m.mounts[mnt.RemoteName] = mnt
	}
	m.mu.Unlock()

	m.logger.Info("mounts loaded", "count", len(loaded), "path", m.opts.StorePath)
	m.Refresh(ctx)
	return nil
}

func (m *Manager) Save() error {
	if m.opts.StorePath == "" {
		return nil
	}

	m.mu.Lock()
	configMounts := make([]*Mount, 0, len(m.mounts))
	for _, mnt := range m.mounts {
		if !mnt.IsDiscovered() {
			configMounts = append(configMounts, mnt.Clone())
		}
	}
	m.mu.Unlock()

	if err := SaveMounts(m.opts.StorePath, configMounts); err != nil {
		m.logger.Error("save mounts", "error", err)
		return err
	}
	return nil
}

// Add registers a config mount. An empty drive letter picks the first
// available drive.
func (m *Manager) Add(remoteName, remotePath, driveLetter string, opts ...Option) (*Mount, error) {
	if driveLetter == "" {
		available := m.AvailableDrives()
		if len(available) == 0 {
			return nil, ErrNoDriveAvailable
		}
		driveLetter = available[0]
	}

	mnt, err := New(remoteName, remotePath, driveLetter, opts...)
	if err != nil {
		return nil, err
	}
	// status is runtime state, new registrations always start unmounted
	mnt.Status = StatusUnmounted

	m.mu.Lock()
	if existing, ok := m.mounts[remoteName]; ok && existing.Status == StatusMounted {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMountBusy, remoteName)
	}
	m.mounts[remoteName] = mnt
	m.mu.Unlock()

	m.logger.Info("mount added", "remote", mnt.RemoteFullPath(), "drive", mnt.DriveLetter)
	if err := m.Save(); err != nil {
		return nil, err
	}
	return mnt.Clone(), nil
}

// Remove unmounts (if needed) and forgets a mount
func (m *Manager) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	mnt, ok := m.mounts[name]
	var mounted bool
	if ok {
		mounted = mnt.Status == StatusMounted || mnt.Status == StatusMounting
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrMountNotFound, name)
	}

	if mounted {
		if err := m.Unmount(ctx, name); err != nil {
			return err
		}
	}

	m.mu.Lock()
	delete(m.mounts, name)
	m.mu.Unlock()

	m.logger.Info("mount removed", "name", name)
	return m.Save()
}

func (m *Manager) Get(name string) (*Mount, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mnt, ok := m.mounts[name]
	if !ok {
		return nil, false
	}
	return mnt.Clone(), true
}

// List returns snapshots of every mount, config mounts first, then by name
func (m *Manager) List() []*Mount {
	m.mu.Lock()
	list := make([]*Mount, 0, len(m.mounts))
	for _, mnt := range m.mounts {
		list = append(list, mnt.Clone())
	}
	m.mu.Unlock()

	slices.SortFunc(list, func(a, b *Mount) int {
		if a.Source != b.Source {
			if a.Source == SourceConfig {
				return -1
			}
			return 1
		}
		if c := strings.Compare(a.RemoteName, b.RemoteName); c != 0 {
			return c
		}
		return strings.Compare(a.DriveLetter, b.DriveLetter)
	})
	return list
}

// Mount starts the mount process in the background. Progress is reported on
// the event bus; an already mounted mount is a no-op.
func (m *Manager) Mount(name string) error {
	m.mu.Lock()
	mnt, ok := m.mounts[name]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("mount: unknown mount", "name", name)
		return fmt.Errorf("%w: %s", ErrMountNotFound, name)
	}
	if mnt.Status == StatusMounted || mnt.Status == StatusMounting {
		m.mu.Unlock()
		m.logger.Debug("mount: already active", "name", name, "status", mnt.Status)
		return nil
	}
	mnt.Status = StatusMounting
	mnt.ErrorMessage = nil
	snapshot := mnt.Clone()
	m.mu.Unlock()

	m.logger.Info("mounting", "remote", snapshot.RemoteFullPath(), "drive", snapshot.DriveLetter)
	m.publishStatus(name, StatusMounting, "")

	go m.runMount(name, snapshot)
	return nil
}

// BuildArgs returns the argv for mounting mnt
func (m *Manager) BuildArgs(mnt *Mount) []string {
	argv := []string{
		m.opts.RclonePath,
		"mount",
		mnt.RemoteFullPath(),
		mnt.DriveLetter + ":",
		"--vfs-cache-mode", string(mnt.CacheMode),
		"--vfs-cache-max-size", mnt.VFSCacheMaxSize,
	}
	if m.opts.RcloneConfigPath != "" {
		argv = append(argv, "--config", m.opts.RcloneConfigPath)
	}
	if mnt.ReadOnly {
		argv = append(argv, "--read-only")
	}
	if m.opts.CacheDir != "" {
		argv = append(argv, "--cache-dir", m.opts.CacheDir)
	}
	return argv
}

func (m *Manager) runMount(name string, mnt *Mount) {
	argv := m.BuildArgs(mnt)
	stderr := newTailBuffer(stderrCaptureSize)

	handle := procmgr.NewHandle(argv[0], argv[1:]...).SetID(name).SetStderr(stderr)
	if err := handle.Start(); err != nil {
		msg := err.Error()
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			msg = fmt.Sprintf("%s: %s", msg, tail)
		}
		m.fail(name, msg)
		return
	}

	pid := handle.PID()
	m.mu.Lock()
	current, ok := m.mounts[name]
	if !ok || current.Status != StatusMounting {
		// unmounted or removed while launching
		m.mu.Unlock()
		_ = handle.Stop(stopGrace)
		return
	}
	m.workers[name] = handle
	current.ProcessID = &pid
	current.Status = StatusMounted
	m.mu.Unlock()

	m.logger.Info("mounted", "name", name, "drive", mnt.DriveLetter, "pid", pid)
	m.publishStatus(name, StatusMounted, "")

	code, _ := handle.Wait()

	m.mu.Lock()
	owned := m.workers[name] == handle
	if owned {
		delete(m.workers, name)
	}
	m.mu.Unlock()

	// a process we did not stop ourselves died on its own
	if owned {
		msg := fmt.Sprintf("mount process exited (code %d)", code)
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			msg = fmt.Sprintf("%s: %s", msg, tail)
		}
		m.fail(name, msg)
	}
}

func (m *Manager) fail(name, msg string) {
	m.mu.Lock()
	mnt, ok := m.mounts[name]
	if ok {
		mnt.Status = StatusError
		mnt.ProcessID = nil
		mnt.ErrorMessage = &msg
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.logger.Error("mount failed", "name", name, "error", msg)
	m.publishStatus(name, StatusError, msg)
	m.opts.Bus.Emit(events.MountError, name, events.StatusData{Status: string(StatusError), Error: msg})
}

// Unmount stops the process behind a mount: the worker this instance
// spawned, else the stored pid, else whatever rclone process serves the
// drive. The mount always ends up unmounted.
func (m *Manager) Unmount(ctx context.Context, name string) error {
	m.mu.Lock()
	mnt, ok := m.mounts[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMountNotFound, name)
	}
	worker := m.workers[name]
	delete(m.workers, name)
	var pid int32
	if mnt.ProcessID != nil {
		pid = *mnt.ProcessID
	}
	drive := mnt.DriveLetter
	m.mu.Unlock()

	m.logger.Info("unmounting", "name", name, "drive", drive)
	terminated := false

	if worker != nil {
		if err := worker.Stop(stopGrace); err != nil && !errors.Is(err, procmgr.ErrNotRunning) {
			m.logger.Warn("unmount: stop worker", "name", name, "error", err)
		}
		terminated = true
	}

	if pid > 0 {
		if worker == nil || worker.PID() != pid {
			if m.opts.Terminate(pid, stopGrace) {
				m.logger.Debug("unmount: terminated pid", "name", name, "pid", pid)
			}
		}
		terminated = true
	}

	if !terminated {
		if m.opts.Supervisor.KillByDriveLetter(ctx, drive) {
			m.logger.Info("unmount: terminated by drive letter", "name", name, "drive", drive)
		} else {
			m.logger.Warn("unmount: no rclone process found for drive", "name", name, "drive", drive)
		}
	}

	m.mu.Lock()
	if mnt, ok := m.mounts[name]; ok {
		mnt.Status = StatusUnmounted
		mnt.ProcessID = nil
	}
	m.mu.Unlock()

	m.publishStatus(name, StatusUnmounted, "")
	return nil
}

// Refresh corrects status drift for config mounts, then replaces the
// discovered mounts with what is running right now
func (m *Manager) Refresh(ctx context.Context) {
	type change struct {
		name   string
		status Status
	}
	var changes []change

	m.mu.Lock()
	configDrives := mapset.NewThreadUnsafeSet[string]()
	snapshot := make(map[string]*Mount)
	for name, mnt := range m.mounts {
		if mnt.IsDiscovered() {
			continue
		}
		configDrives.Add(mnt.DriveLetter)
		snapshot[name] = mnt.Clone()
	}
	m.mu.Unlock()

	// liveness probes may hit the filesystem, keep them outside the lock
	alive := make(map[string]bool, len(snapshot))
	for name, mnt := range snapshot {
		alive[name] = m.isAlive(mnt)
	}

	m.mu.Lock()
	for name, isAlive := range alive {
		mnt, ok := m.mounts[name]
		if !ok || !sameState(mnt, snapshot[name]) {
			// changed while probing, the next pass re-checks it
			continue
		}
		wasMounted := mnt.Status == StatusMounted
		if isAlive == wasMounted {
			continue
		}
		if isAlive {
			mnt.Status = StatusMounted
		} else {
			mnt.Status = StatusUnmounted
			mnt.ProcessID = nil
		}
		changes = append(changes, change{name, mnt.Status})
	}
	m.mu.Unlock()

	for _, c := range changes {
		m.logger.Debug("mount drift corrected", "name", c.name, "status", c.status)
		m.publishStatus(c.name, c.status, "")
	}

	discovered := m.discover(ctx, configDrives)

	m.mu.Lock()
	for key, mnt := range m.mounts {
		if mnt.IsDiscovered() {
			delete(m.mounts, key)
		}
	}
	for _, mnt := range discovered {
		m.mounts[discoveredPrefix+mnt.DriveLetter] = mnt
	}
	m.mu.Unlock()
}

// isAlive checks the drive where drive letters exist, the pid elsewhere
func sameState(a, b *Mount) bool {
	if a.Status != b.Status {
		return false
	}
	if a.ProcessID == nil || b.ProcessID == nil {
		return a.ProcessID == b.ProcessID
	}
	return *a.ProcessID == *b.ProcessID
}

func (m *Manager) isAlive(mnt *Mount) bool {
	if m.opts.Probe.Supported() {
		return m.opts.Probe.DriveExists(mnt.DriveLetter)
	}
	if mnt.ProcessID == nil {
		return false
	}
	return m.opts.Alive(*mnt.ProcessID)
}

// Discover lists running rclone mounts for drives no config mount owns
func (m *Manager) Discover(ctx context.Context) []*Mount {
	m.mu.Lock()
	configDrives := mapset.NewThreadUnsafeSet[string]()
	for _, mnt := range m.mounts {
		if !mnt.IsDiscovered() {
			configDrives.Add(mnt.DriveLetter)
		}
	}
	m.mu.Unlock()

	return m.discover(ctx, configDrives)
}

func (m *Manager) discover(ctx context.Context, configDrives mapset.Set[string]) []*Mount {
	procs, err := m.opts.Query.List(ctx, procmgr.Filter{
		ImagePrefix:     "rclone",
		CmdlineContains: []string{"mount"},
	})
	if err != nil {
		m.logger.Warn("discovery: process query failed", "error", err)
		return []*Mount{}
	}

	byDrive := make(map[string]*Mount)
	for _, p := range procs {
		drive, remote, ok := ParseMountCmdline(p.Cmdline)
		if !ok {
			m.logger.Debug("discovery: unparsable command line", "pid", p.PID)
			continue
		}
		if configDrives.Contains(drive) {
			continue
		}
		byDrive[drive] = FromProcessInfo(drive, p.PID, remote)
	}

	discovered := make([]*Mount, 0, len(byDrive))
	for _, mnt := range byDrive {
		discovered = append(discovered, mnt)
	}
	slices.SortFunc(discovered, func(a, b *Mount) int {
		return strings.Compare(a.DriveLetter, b.DriveLetter)
	})
	return discovered
}

// AvailableDrives returns drive letters that neither exist on the system nor
// belong to a mounted mount
func (m *Manager) AvailableDrives() []string {
	if !m.opts.Probe.Supported() {
		return []string{}
	}

	used := mapset.NewThreadUnsafeSet[string]()
	for _, r := range driveLetters {
		letter := string(r)
		if m.opts.Probe.DriveExists(letter) {
			used.Add(letter)
		}
	}

	m.mu.Lock()
	for _, mnt := range m.mounts {
		if mnt.IsMounted() {
			used.Add(mnt.DriveLetter)
		}
	}
	m.mu.Unlock()

	available := []string{}
	for _, r := range driveLetters {
		if !used.Contains(string(r)) {
			available = append(available, string(r))
		}
	}
	return available
}

// AutoMountAll mounts every auto-mount entry that is not mounted yet
func (m *Manager) AutoMountAll() BatchResult {
	m.mu.Lock()
	var names []string
	for name, mnt := range m.mounts {
		if mnt.AutoMount && !mnt.IsDiscovered() && !mnt.IsMounted() {
			names = append(names, name)
		}
	}
	m.mu.Unlock()
	slices.Sort(names)

	m.logger.Info("auto-mounting", "count", len(names))
	var res BatchResult
	for _, name := range names {
		if err := m.Mount(name); err != nil {
			res.Failed++
			m.logger.Warn("auto-mount failed", "name", name, "error", err)
			continue
		}
		res.Succeeded++
	}

	if res.Failed > 0 {
		m.logger.Warn("auto-mount finished", "succeeded", res.Succeeded, "failed", res.Failed)
	}
	return res
}

func (m *Manager) UnmountAll(ctx context.Context) BatchResult {
	m.mu.Lock()
	names := make([]string, 0, len(m.mounts))
	for name := range m.mounts {
		names = append(names, name)
	}
	m.mu.Unlock()
	slices.Sort(names)

	m.logger.Info("unmounting all", "count", len(names))
	var res BatchResult
	for _, name := range names {
		if err := m.Unmount(ctx, name); err != nil {
			res.Failed++
			m.logger.Warn("unmount failed", "name", name, "error", err)
			continue
		}
		res.Succeeded++
	}
	return res
}

// ProcessStats reports resource usage of the process behind a mount
func (m *Manager) ProcessStats(name string) (*procmgr.ProcessStats, error) {
	mnt, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMountNotFound, name)
	}
	if mnt.ProcessID == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMounted, name)
	}
	return procmgr.Stats(*mnt.ProcessID)
}

// Shutdown stops the mounts this instance spawned when configured to do so.
// Otherwise they keep running and are rediscovered on the next start.
func (m *Manager) Shutdown(ctx context.Context) {
	if !m.opts.UnmountOnExit {
		m.mu.Lock()
		running := len(m.workers)
		m.mu.Unlock()
		m.logger.Info("leaving mounts running", "count", running)
		return
	}

	m.mu.Lock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		if err := m.Unmount(ctx, name); err != nil {
			m.logger.Warn("shutdown unmount", "name", name, "error", err)
		}
	}
}

func (m *Manager) publishStatus(name string, status Status, errMsg string) {
	m.opts.Bus.Emit(events.MountStatus, name, events.StatusData{Status: string(status), Error: errMsg})
}
