package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/rclonebox/internal/mount"
)

type MountHandler struct {
	mgr *mount.Manager
}

func NewMountHandler(mgr *mount.Manager) *MountHandler {
	return &MountHandler{mgr: mgr}
}

// List returns config mounts followed by discovered ones
func (h *MountHandler) List(c *gin.Context) {
	c.PureJSON(http.StatusOK, &MountListResponse{Mounts: h.mgr.List()})
}

func (h *MountHandler) Create(c *gin.Context) {
	var req MountCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	opts := []mount.Option{
		mount.WithAutoMount(req.AutoMount),
		mount.WithReadOnly(req.ReadOnly),
	}
	if req.CacheMode != "" {
		opts = append(opts, mount.WithCacheMode(req.CacheMode))
	}
	if req.VFSCacheMaxSize != "" {
		opts = append(opts, mount.WithCacheMaxSize(req.VFSCacheMaxSize))
	}

	mnt, err := h.mgr.Add(req.RemoteName, req.RemotePath, req.DriveLetter, opts...)
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}

	if req.MountNow {
		if err := h.mgr.Mount(mnt.RemoteName); err != nil {
			AbortWithDomainError(c, err)
			return
		}
		mnt, _ = h.mgr.Get(mnt.RemoteName)
	}

	c.PureJSON(http.StatusCreated, mnt)
}

func (h *MountHandler) Delete(c *gin.Context) {
	if err := h.mgr.Remove(c.Request.Context(), c.Param("name")); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	ok(c)
}

// Mount starts the mount in the background. Progress arrives as mount.status events.
func (h *MountHandler) Mount(c *gin.Context) {
	name := c.Param("name")
	if err := h.mgr.Mount(name); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	mnt, _ := h.mgr.Get(name)
	c.PureJSON(http.StatusAccepted, mnt)
}

func (h *MountHandler) Unmount(c *gin.Context) {
	name := c.Param("name")
	if err := h.mgr.Unmount(c.Request.Context(), name); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	mnt, _ := h.mgr.Get(name)
	c.PureJSON(http.StatusOK, mnt)
}

// Refresh reconciles the registry with running rclone processes
func (h *MountHandler) Refresh(c *gin.Context) {
	h.mgr.Refresh(c.Request.Context())
	c.PureJSON(http.StatusOK, &MountListResponse{Mounts: h.mgr.List()})
}

func (h *MountHandler) Drives(c *gin.Context) {
	c.PureJSON(http.StatusOK, &DrivesResponse{Drives: h.mgr.AvailableDrives()})
}

func (h *MountHandler) Stats(c *gin.Context) {
	stats, err := h.mgr.ProcessStats(c.Param("name"))
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, stats)
}
