package procmgr

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const rcloneImage = "rclone"

// DriveProbe reports whether a drive letter currently exists on the filesystem
type DriveProbe interface {
	DriveExists(letter string) bool
}

// DriveProbeFunc adapts a function to DriveProbe
type DriveProbeFunc func(letter string) bool

func (f DriveProbeFunc) DriveExists(letter string) bool { return f(letter) }

// Supervisor finds and terminates rclone processes that the current instance
// does not own, e.g. mounts left over from a previous run.
type Supervisor struct {
	Query     ProcessQuery
	Terminate TerminateFunc
	Exists    DriveProbe
	Grace     time.Duration
	Logger    *slog.Logger
}

func NewSupervisor(query ProcessQuery, probe DriveProbe, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		Query:     query,
		Terminate: Terminate,
		Exists:    probe,
		Grace:     5 * time.Second,
		Logger:    logger.With("component", "procmgr"),
	}
}

// KillByDriveLetter terminates the rclone mount serving letter. It first
// targets processes whose command line names the drive; only when none is
// found and the drive is still present does it fall back to terminating every
// rclone process. It reports whether any process was found.
func (s *Supervisor) KillByDriveLetter(ctx context.Context, letter string) bool {
	letter = strings.ToUpper(strings.TrimSuffix(letter, ":"))
	if letter == "" {
		return false
	}

	procs, err := s.Query.List(ctx, Filter{
		ImagePrefix:     rcloneImage,
		CmdlineContains: []string{"mount", " " + letter + ":"},
	})
	if err != nil {
		s.Logger.Warn("drive kill: process query failed", "drive", letter, "error", err)
	}

	if len(procs) > 0 {
		for _, p := range procs {
			s.Logger.Info("drive kill: terminating mount", "drive", letter, "pid", p.PID)
			s.Terminate(p.PID, s.Grace)
		}
		return true
	}

	if s.Exists == nil || !s.Exists.DriveExists(letter) {
		return false
	}

	procs, err = s.Query.List(ctx, Filter{ImagePrefix: rcloneImage})
	if err != nil {
		s.Logger.Warn("drive kill: coarse process query failed", "drive", letter, "error", err)
		return false
	}
	if len(procs) == 0 {
		return false
	}

	s.Logger.Warn("drive kill: falling back to all rclone processes", "drive", letter, "count", len(procs))
	for _, p := range procs {
		s.Terminate(p.PID, s.Grace)
	}
	return true
}
