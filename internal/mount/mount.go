package mount

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

var ErrInvalidMount = errors.New("invalid mount")

type Status string

const (
	StatusUnmounted Status = "unmounted"
	StatusMounting  Status = "mounting"
	StatusMounted   Status = "mounted"
	StatusError     Status = "error"
)

type CacheMode string

const (
	CacheOff     CacheMode = "off"
	CacheMinimal CacheMode = "minimal"
	CacheWrites  CacheMode = "writes"
	CacheFull    CacheMode = "full"
)

type Source string

const (
	SourceConfig     Source = "config"
	SourceDiscovered Source = "discovered"
)

const DefaultCacheMaxSize = "10G"

var (
	driveLetterRe = regexp.MustCompile(`^[A-Za-z]$`)
	cacheSizeRe   = regexp.MustCompile(`(?i)^\d+[KMGT]?$`)
)

// Mount binds a remote (optionally a sub-path of it) to a drive letter
type Mount struct {
	RemoteName      string    `json:"remote_name"`
	RemotePath      string    `json:"remote_path"`
	DriveLetter     string    `json:"drive_letter"`
	Status          Status    `json:"status"`
	AutoMount       bool      `json:"auto_mount"`
	ReadOnly        bool      `json:"read_only"`
	CacheMode       CacheMode `json:"cache_mode"`
	VFSCacheMaxSize string    `json:"vfs_cache_max_size"`
	ProcessID       *int32    `json:"process_id"`
	ErrorMessage    *string   `json:"error_message"`
	Source          Source    `json:"source"`
}

type Option func(*Mount)

func WithAutoMount(v bool) Option { return func(m *Mount) { m.AutoMount = v } }

func WithReadOnly(v bool) Option { return func(m *Mount) { m.ReadOnly = v } }

func WithCacheMode(mode CacheMode) Option { return func(m *Mount) { m.CacheMode = mode } }

func WithCacheMaxSize(size string) Option { return func(m *Mount) { m.VFSCacheMaxSize = size } }

func WithStatus(status Status) Option { return func(m *Mount) { m.Status = status } }

func WithSource(source Source) Option { return func(m *Mount) { m.Source = source } }

// New returns a validated config mount
func New(remoteName, remotePath, driveLetter string, opts ...Option) (*Mount, error) {
	m := &Mount{
		RemoteName:      remoteName,
		RemotePath:      remotePath,
		DriveLetter:     driveLetter,
		Status:          StatusUnmounted,
		CacheMode:       CacheOff,
		VFSCacheMaxSize: DefaultCacheMaxSize,
		Source:          SourceConfig,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.DriveLetter = strings.ToUpper(m.DriveLetter)
	return m, nil
}

// FromProcessInfo synthesizes a discovered mount from a live rclone process
func FromProcessInfo(driveLetter string, pid int32, remoteName string) *Mount {
	drive := strings.ToUpper(driveLetter)
	if remoteName == "" {
		remoteName = "unknown_" + drive
	}
	return &Mount{
		RemoteName:      remoteName,
		DriveLetter:     drive,
		Status:          StatusMounted,
		CacheMode:       CacheOff,
		VFSCacheMaxSize: DefaultCacheMaxSize,
		ProcessID:       &pid,
		Source:          SourceDiscovered,
	}
}

func (m *Mount) Validate() error {
	if !driveLetterRe.MatchString(m.DriveLetter) {
		return fmt.Errorf("%w: drive letter %q must be a single letter A-Z", ErrInvalidMount, m.DriveLetter)
	}

	if m.RemoteName == "" ||
		strings.Contains(m.RemoteName, "..") ||
		strings.ContainsAny(m.RemoteName, `/\`) {
		return fmt.Errorf("%w: remote name %q", ErrInvalidMount, m.RemoteName)
	}

	switch m.CacheMode {
	case CacheOff, CacheMinimal, CacheWrites, CacheFull:
	default:
		return fmt.Errorf("%w: cache mode %q must be one of off, minimal, writes, full", ErrInvalidMount, m.CacheMode)
	}

	if !cacheSizeRe.MatchString(m.VFSCacheMaxSize) {
		return fmt.Errorf("%w: vfs cache max size %q", ErrInvalidMount, m.VFSCacheMaxSize)
	}

	return nil
}

// RemoteFullPath is the rclone remote path, e.g. `gdrive:photos/2024`
func (m *Mount) RemoteFullPath() string {
	return m.RemoteName + ":" + strings.Trim(m.RemotePath, "/")
}

func (m *Mount) IsMounted() bool {
	return m.Status == StatusMounted
}

func (m *Mount) IsDiscovered() bool {
	return m.Source == SourceDiscovered
}

// Equal compares mounts by remote name and drive letter
func (m *Mount) Equal(other *Mount) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.RemoteName == other.RemoteName && m.DriveLetter == other.DriveLetter
}

func (m *Mount) Clone() *Mount {
	c := *m
	if m.ProcessID != nil {
		pid := *m.ProcessID
		c.ProcessID = &pid
	}
	if m.ErrorMessage != nil {
		msg := *m.ErrorMessage
		c.ErrorMessage = &msg
	}
	return &c
}

func (m *Mount) String() string {
	return fmt.Sprintf("%s -> %s: (%s)", m.RemoteFullPath(), m.DriveLetter, m.Status)
}

// MarshalConfig returns the persisted form, or nil for discovered mounts
func (m *Mount) MarshalConfig() ([]byte, error) {
	if m.IsDiscovered() {
		return nil, nil
	}
	return json.Marshal(m)
}

// mountRecord mirrors Mount with pointers so missing keys can be told apart
type mountRecord struct {
	RemoteName      *string `json:"remote_name"`
	RemotePath      string  `json:"remote_path"`
	DriveLetter     *string `json:"drive_letter"`
	Status          string  `json:"status"`
	AutoMount       bool    `json:"auto_mount"`
	ReadOnly        bool    `json:"read_only"`
	CacheMode       string  `json:"cache_mode"`
	VFSCacheMaxSize string  `json:"vfs_cache_max_size"`
	ProcessID       *int32  `json:"process_id"`
	ErrorMessage    *string `json:"error_message"`
	Source          string  `json:"source"`
}

func (m *Mount) UnmarshalJSON(data []byte) error {
	var rec mountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	if rec.RemoteName == nil {
		return fmt.Errorf("%w: missing required field remote_name", ErrInvalidMount)
	}
	if rec.DriveLetter == nil {
		return fmt.Errorf("%w: missing required field drive_letter", ErrInvalidMount)
	}

	status := Status(rec.Status)
	switch status {
	case StatusUnmounted, StatusMounting, StatusMounted, StatusError:
	default:
		status = StatusUnmounted
	}

	parsed := Mount{
		RemoteName:      *rec.RemoteName,
		RemotePath:      rec.RemotePath,
		DriveLetter:     *rec.DriveLetter,
		Status:          status,
		AutoMount:       rec.AutoMount,
		ReadOnly:        rec.ReadOnly,
		CacheMode:       CacheMode(rec.CacheMode),
		VFSCacheMaxSize: rec.VFSCacheMaxSize,
		ProcessID:       rec.ProcessID,
		ErrorMessage:    rec.ErrorMessage,
		Source:          Source(rec.Source),
	}
	if parsed.CacheMode == "" {
		parsed.CacheMode = CacheOff
	}
	if parsed.VFSCacheMaxSize == "" {
		parsed.VFSCacheMaxSize = DefaultCacheMaxSize
	}
	if parsed.Source != SourceDiscovered {
		parsed.Source = SourceConfig
	}

	if err := parsed.Validate(); err != nil {
		return err
	}
	parsed.DriveLetter = strings.ToUpper(parsed.DriveLetter)

	*m = parsed
	return nil
}
