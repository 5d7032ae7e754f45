package handlers

import "github.com/openmined/rclonebox/internal/mount"

// MountCreateRequest registers a mount. An empty drive letter picks the
// first free one.
type MountCreateRequest struct {
	RemoteName      string          `json:"remote_name" binding:"required"`
	RemotePath      string          `json:"remote_path"`
	DriveLetter     string          `json:"drive_letter"`
	AutoMount       bool            `json:"auto_mount"`
	ReadOnly        bool            `json:"read_only"`
	CacheMode       mount.CacheMode `json:"cache_mode"`
	VFSCacheMaxSize string          `json:"vfs_cache_max_size"`
	MountNow        bool            `json:"mount_now"` // start the mount right away
}

type MountListResponse struct {
	Mounts []*mount.Mount `json:"mounts"`
}

type DrivesResponse struct {
	Drives []string `json:"drives"`
}
