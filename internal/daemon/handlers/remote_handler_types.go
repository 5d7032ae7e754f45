package handlers

import "github.com/openmined/rclonebox/internal/remotes"

type RemoteCreateRequest struct {
	Name    string            `json:"name" binding:"required"`
	Type    string            `json:"type" binding:"required"`
	Options map[string]string `json:"options"`
}

type RemoteUpdateRequest struct {
	Options map[string]string `json:"options" binding:"required"`
}

// RemoteListResponse carries remotes with credential options masked
type RemoteListResponse struct {
	Remotes []*remotes.Remote `json:"remotes"`
}

type RemoteTestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
