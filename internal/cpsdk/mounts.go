package cpsdk

import (
	"context"

	"github.com/imroc/req/v3"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/openmined/rclonebox/internal/procmgr"
)

const (
	v1Mounts       = "/v1/mounts"
	v1MountsDrives = "/v1/mounts/drives"
	v1MountsSync   = "/v1/mounts/refresh"
	v1Mount        = "/v1/mounts/{name}"
	v1MountUp      = "/v1/mounts/{name}/mount"
	v1MountDown    = "/v1/mounts/{name}/unmount"
	v1MountStats   = "/v1/mounts/{name}/stats"
)

type MountsAPI struct {
	client *req.Client
}

func newMountsAPI(client *req.Client) *MountsAPI {
	return &MountsAPI{client: client}
}

func (m *MountsAPI) List(ctx context.Context) ([]*mount.Mount, error) {
	var resp handlers.MountListResponse
	res, err := m.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1Mounts)

	if err := handleAPIError(res, err, "list mounts"); err != nil {
		return nil, err
	}
	return resp.Mounts, nil
}

func (m *MountsAPI) Create(ctx context.Context, params *handlers.MountCreateRequest) (resp *mount.Mount, err error) {
	res, err := m.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		Post(v1Mounts)

	if err := handleAPIError(res, err, "create mount"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *MountsAPI) Delete(ctx context.Context, name string) error {
	res, err := m.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		Delete(v1Mount)

	return handleAPIError(res, err, "delete mount")
}

// Mount starts the mount. It returns once the daemon has accepted the request.
func (m *MountsAPI) Mount(ctx context.Context, name string) (resp *mount.Mount, err error) {
	return m.action(ctx, name, v1MountUp, "mount")
}

func (m *MountsAPI) Unmount(ctx context.Context, name string) (resp *mount.Mount, err error) {
	return m.action(ctx, name, v1MountDown, "unmount")
}

func (m *MountsAPI) action(ctx context.Context, name, path, operation string) (resp *mount.Mount, err error) {
	res, err := m.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetSuccessResult(&resp).
		Post(path)

	if err := handleAPIError(res, err, operation); err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *MountsAPI) Refresh(ctx context.Context) ([]*mount.Mount, error) {
	var resp handlers.MountListResponse
	res, err := m.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Post(v1MountsSync)

	if err := handleAPIError(res, err, "refresh mounts"); err != nil {
		return nil, err
	}
	return resp.Mounts, nil
}

func (m *MountsAPI) Drives(ctx context.Context) ([]string, error) {
	var resp handlers.DrivesResponse
	res, err := m.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1MountsDrives)

	if err := handleAPIError(res, err, "available drives"); err != nil {
		return nil, err
	}
	return resp.Drives, nil
}

func (m *MountsAPI) Stats(ctx context.Context, name string) (resp *procmgr.ProcessStats, err error) {
	res, err := m.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetSuccessResult(&resp).
		Get(v1MountStats)

	if err := handleAPIError(res, err, "mount stats"); err != nil {
		return nil, err
	}
	return resp, nil
}
