package cpsdk

import (
	"context"

	"github.com/openmined/rclonebox/internal/daemon/handlers"
)

const (
	v1Status       = "/v1/status"
	v1CronValidate = "/v1/cron/validate"
)

// Status returns the daemon's runtime summary
func (c *Client) Status(ctx context.Context) (resp *handlers.StatusResponse, err error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(v1Status)

	if err := handleAPIError(res, err, "status"); err != nil {
		return nil, err
	}
	return resp, nil
}

// ValidateCron asks the daemon to parse and describe expr
func (c *Client) ValidateCron(ctx context.Context, expr string) (resp *handlers.CronValidateResponse, err error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("expr", expr).
		SetSuccessResult(&resp).
		Get(v1CronValidate)

	if err := handleAPIError(res, err, "validate cron"); err != nil {
		return nil, err
	}
	return resp, nil
}
