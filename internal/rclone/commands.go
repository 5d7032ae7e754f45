package rclone

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/openmined/rclonebox/internal/utils"
)

// ListItem is one entry of `rclone lsjson`
type ListItem struct {
	Path     string    `json:"Path"`
	Name     string    `json:"Name"`
	Size     int64     `json:"Size"`
	MimeType string    `json:"MimeType"`
	ModTime  time.Time `json:"ModTime"`
	IsDir    bool      `json:"IsDir"`
	ID       string    `json:"ID,omitempty"`
}

// AboutInfo is the output of `rclone about --json`. Backends omit the
// fields they cannot report.
type AboutInfo struct {
	Total   *int64 `json:"total,omitempty"`
	Used    *int64 `json:"used,omitempty"`
	Trashed *int64 `json:"trashed,omitempty"`
	Other   *int64 `json:"other,omitempty"`
	Free    *int64 `json:"free,omitempty"`
	Objects *int64 `json:"objects,omitempty"`
}

// SizeInfo is the output of `rclone size --json`
type SizeInfo struct {
	Count    int64 `json:"count"`
	Bytes    int64 `json:"bytes"`
	Sizeless int64 `json:"sizeless"`
}

// Version returns the first line of `rclone version`, or "unknown"
func (r *Runner) Version(ctx context.Context) string {
	res := r.Run(ctx, []string{"version"})
	if !res.Success {
		return "unknown"
	}
	first, _, _ := strings.Cut(res.Stdout, "\n")
	return strings.TrimSpace(first)
}

func (r *Runner) ListRemotes(ctx context.Context) []string {
	res := r.Run(ctx, []string{"listremotes"})
	if !res.Success {
		return []string{}
	}

	remotes := []string{}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		remotes = append(remotes, strings.TrimSuffix(line, ":"))
	}
	return remotes
}

// ConfigDump returns every configured remote keyed by name
func (r *Runner) ConfigDump(ctx context.Context) (map[string]map[string]string, error) {
	dump := map[string]map[string]string{}
	if _, err := r.RunJSON(ctx, &dump, []string{"config", "dump"}); err != nil {
		return map[string]map[string]string{}, err
	}
	return dump, nil
}

// ConfigFile returns the rclone.conf path rclone resolves, or "" when it
// cannot be determined
func (r *Runner) ConfigFile(ctx context.Context) string {
	if r.configPath != "" {
		return r.configPath
	}
	res := r.Run(ctx, []string{"config", "file"})
	if !res.Success {
		return ""
	}
	// "Configuration file is stored at:\n/path/to/rclone.conf"
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func (r *Runner) ConfigGet(ctx context.Context, name string) map[string]string {
	dump, err := r.ConfigDump(ctx)
	if err != nil {
		return map[string]string{}
	}
	if cfg, ok := dump[name]; ok {
		return cfg
	}
	return map[string]string{}
}

// ConfigCreate runs `config create NAME TYPE key=value...`. The returned
// error is non-nil only for validation failures.
func (r *Runner) ConfigCreate(ctx context.Context, name, remoteType string, opts map[string]string) (*Result, error) {
	r.logger.Info("config create", "name", name, "type", remoteType, "options", len(opts))
	if err := ValidateRemoteName(name); err != nil {
		return nil, err
	}
	if err := ValidateRemoteName(remoteType); err != nil {
		return nil, fmt.Errorf("remote type: %w", err)
	}

	kv, err := optionArgs(opts)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, append([]string{"config", "create", name, remoteType}, kv...)), nil
}

func (r *Runner) ConfigUpdate(ctx context.Context, name string, opts map[string]string) (*Result, error) {
	r.logger.Info("config update", "name", name, "options", utils.MaskOptions(opts))
	if err := ValidateRemoteName(name); err != nil {
		return nil, err
	}

	kv, err := optionArgs(opts)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, append([]string{"config", "update", name}, kv...)), nil
}

func (r *Runner) ConfigDelete(ctx context.Context, name string) (*Result, error) {
	r.logger.Info("config delete", "name", name)
	if err := ValidateRemoteName(name); err != nil {
		return nil, err
	}
	return r.Run(ctx, []string{"config", "delete", name}), nil
}

func (r *Runner) LsJSON(ctx context.Context, remotePath string, recursive bool) ([]ListItem, error) {
	items := []ListItem{}
	if _, err := r.RunJSON(ctx, &items, []string{"lsjson", remotePath}, Opt("recursive", recursive)); err != nil {
		return []ListItem{}, err
	}
	return items, nil
}

func (r *Runner) Mkdir(ctx context.Context, remotePath string) *Result {
	return r.Run(ctx, []string{"mkdir", remotePath})
}

func (r *Runner) Rmdir(ctx context.Context, remotePath string) *Result {
	return r.Run(ctx, []string{"rmdir", remotePath})
}

func (r *Runner) Purge(ctx context.Context, remotePath string) *Result {
	return r.Run(ctx, []string{"purge", remotePath})
}

func (r *Runner) DeleteFile(ctx context.Context, remotePath string) *Result {
	return r.Run(ctx, []string{"deletefile", remotePath})
}

func (r *Runner) Copy(ctx context.Context, src, dst string, opts ...Option) *Result {
	return r.Run(ctx, []string{"copy", src, dst}, opts...)
}

func (r *Runner) Move(ctx context.Context, src, dst string, opts ...Option) *Result {
	return r.Run(ctx, []string{"move", src, dst}, opts...)
}

func (r *Runner) Sync(ctx context.Context, src, dst string, opts ...Option) *Result {
	return r.Run(ctx, []string{"sync", src, dst}, opts...)
}

// Check lists the top level of a remote as a connectivity test
func (r *Runner) Check(ctx context.Context, remote string) *Result {
	return r.Run(ctx, []string{"lsd", remote + ":"}, Opt("max_depth", 1))
}

func (r *Runner) About(ctx context.Context, remote string) (*AboutInfo, error) {
	var info AboutInfo
	if _, err := r.RunJSON(ctx, &info, []string{"about", remote + ":"}, Opt("json", true)); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *Runner) Size(ctx context.Context, remotePath string) (*SizeInfo, error) {
	var info SizeInfo
	if _, err := r.RunJSON(ctx, &info, []string{"size", remotePath}, Opt("json", true)); err != nil {
		return nil, err
	}
	return &info, nil
}

// optionArgs validates keys, sanitizes values and renders them as sorted key=value args
func optionArgs(opts map[string]string) ([]string, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		if err := ValidateOptionKey(k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, k+"="+SanitizeOptionValue(opts[k]))
	}
	return args, nil
}
