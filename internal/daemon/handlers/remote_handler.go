package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/rclonebox/internal/remotes"
)

// RemoteHandler exposes rclone.conf. Credentials never leave the daemon unmasked.
type RemoteHandler struct {
	mgr *remotes.ConfigManager
}

func NewRemoteHandler(mgr *remotes.ConfigManager) *RemoteHandler {
	return &RemoteHandler{mgr: mgr}
}

func (h *RemoteHandler) List(c *gin.Context) {
	list, err := h.mgr.List(c.Request.Context())
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}

	masked := make([]*remotes.Remote, 0, len(list))
	for _, r := range list {
		masked = append(masked, r.Masked())
	}
	c.PureJSON(http.StatusOK, &RemoteListResponse{Remotes: masked})
}

func (h *RemoteHandler) Get(c *gin.Context) {
	r, err := h.mgr.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, r.Masked())
}

func (h *RemoteHandler) Create(c *gin.Context) {
	var req RemoteCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.mgr.Add(c.Request.Context(), req.Name, req.Type, req.Options)
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusCreated, r.Masked())
}

func (h *RemoteHandler) Update(c *gin.Context) {
	var req RemoteUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := h.mgr.Update(c.Request.Context(), c.Param("name"), req.Options)
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, r.Masked())
}

func (h *RemoteHandler) Delete(c *gin.Context) {
	if err := h.mgr.Delete(c.Request.Context(), c.Param("name")); err != nil {
		AbortWithDomainError(c, err)
		return
	}
	ok(c)
}

// Test reports connectivity in the body; a failed check is still a 200
func (h *RemoteHandler) Test(c *gin.Context) {
	success, msg := h.mgr.Test(c.Request.Context(), c.Param("name"))
	c.PureJSON(http.StatusOK, &RemoteTestResponse{Success: success, Message: msg})
}

func (h *RemoteHandler) About(c *gin.Context) {
	info, err := h.mgr.Info(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithDomainError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, info)
}
