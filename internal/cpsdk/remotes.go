package cpsdk

import (
	"context"

	"github.com/imroc/req/v3"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/rclone"
	"github.com/openmined/rclonebox/internal/remotes"
)

const (
	v1Remotes     = "/v1/remotes"
	v1Remote      = "/v1/remotes/{name}"
	v1RemoteTest  = "/v1/remotes/{name}/test"
	v1RemoteAbout = "/v1/remotes/{name}/about"
)

// RemotesAPI reads and edits rclone.conf through the daemon. Credential
// options come back masked.
type RemotesAPI struct {
	client *req.Client
}

func newRemotesAPI(client *req.Client) *RemotesAPI {
	return &RemotesAPI{client: client}
}

func (r *RemotesAPI) List(ctx context.Context) ([]*remotes.Remote, error) {
	var resp handlers.RemoteListResponse
	res, err := r.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1Remotes)

	if err := handleAPIError(res, err, "list remotes"); err != nil {
		return nil, err
	}
	return resp.Remotes, nil
}

func (r *RemotesAPI) Get(ctx context.Context, name string) (resp *remotes.Remote, err error) {
	res, err := r.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetSuccessResult(&resp).
		Get(v1Remote)

	if err := handleAPIError(res, err, "get remote"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RemotesAPI) Create(ctx context.Context, params *handlers.RemoteCreateRequest) (resp *remotes.Remote, err error) {
	res, err := r.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&resp).
		Post(v1Remotes)

	if err := handleAPIError(res, err, "create remote"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RemotesAPI) Update(ctx context.Context, name string, options map[string]string) (resp *remotes.Remote, err error) {
	res, err := r.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetBody(&handlers.RemoteUpdateRequest{Options: options}).
		SetSuccessResult(&resp).
		Patch(v1Remote)

	if err := handleAPIError(res, err, "update remote"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RemotesAPI) Delete(ctx context.Context, name string) error {
	res, err := r.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		Delete(v1Remote)

	return handleAPIError(res, err, "delete remote")
}

func (r *RemotesAPI) Test(ctx context.Context, name string) (resp *handlers.RemoteTestResponse, err error) {
	res, err := r.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetSuccessResult(&resp).
		Post(v1RemoteTest)

	if err := handleAPIError(res, err, "test remote"); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RemotesAPI) About(ctx context.Context, name string) (resp *rclone.AboutInfo, err error) {
	res, err := r.client.R().
		SetContext(ctx).
		SetPathParam("name", name).
		SetSuccessResult(&resp).
		Get(v1RemoteAbout)

	if err := handleAPIError(res, err, "about remote"); err != nil {
		return nil, err
	}
	return resp, nil
}
