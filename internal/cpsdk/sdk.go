package cpsdk

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/rclonebox/internal/version"
)

const (
	HeaderUserAgent = "User-Agent"
	HeaderVersion   = "X-RcloneBox-Version"

	defaultTimeout = 30 * time.Second
)

// Client talks to a running daemon's control plane
type Client struct {
	client  *req.Client
	baseURL string
	token   string

	Mounts  *MountsAPI
	Tasks   *TasksAPI
	Remotes *RemotesAPI
	Events  *EventsAPI
}

// New creates a client for the control plane at baseURL. An empty token
// sends no Authorization header.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if token != "" {
		client.SetCommonBearerAuthToken(token)
	}

	return &Client{
		client:  client,
		baseURL: baseURL,
		token:   token,
		Mounts:  newMountsAPI(client),
		Tasks:   newTasksAPI(client),
		Remotes: newRemotesAPI(client),
		Events:  newEventsAPI(baseURL, token),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}
