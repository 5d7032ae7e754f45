package handlers

import (
	"net/http"
	"testing"

	"github.com/openmined/rclonebox/internal/rclone"
	"github.com/openmined/rclonebox/internal/remotes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteListMasksCredentials(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/remotes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[RemoteListResponse](t, w).Remotes
	require.Len(t, list, 2)

	assert.Equal(t, "gdrive", list[0].Name)
	assert.Equal(t, "***", list[0].Config["token"])
	assert.Equal(t, "drive", list[0].Config["scope"])
	assert.Equal(t, "***", list[1].Config["pass"])
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestRemoteCRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/remotes", RemoteCreateRequest{
		Name: "b2", Type: "B2", Options: map[string]string{"account": "acc", "key": "k"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[remotes.Remote](t, w)
	assert.Equal(t, "b2", created.Type)

	assertError(t, s.do(t, http.MethodPost, "/v1/remotes", RemoteCreateRequest{Name: "b2", Type: "b2"}),
		http.StatusConflict, ErrCodeConflict)
	assertError(t, s.do(t, http.MethodPost, "/v1/remotes", RemoteCreateRequest{Name: "b 2", Type: "b2"}),
		http.StatusBadRequest, ErrCodeBadRequest)

	w = s.do(t, http.MethodPatch, "/v1/remotes/b2", RemoteUpdateRequest{Options: map[string]string{"hard_delete": "true"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", decode[remotes.Remote](t, w).Config["hard_delete"])

	w = s.do(t, http.MethodGet, "/v1/remotes/b2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/v1/remotes/b2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assertError(t, s.do(t, http.MethodGet, "/v1/remotes/b2", nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestRemoteTestAndAbout(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/v1/remotes/gdrive/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[RemoteTestResponse](t, w).Success)

	w = s.do(t, http.MethodPost, "/v1/remotes/offline/test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RemoteTestResponse](t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "connection refused")

	w = s.do(t, http.MethodGet, "/v1/remotes/gdrive/about", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[rclone.AboutInfo](t, w)
	require.NotNil(t, info.Free)
	assert.Equal(t, int64(512), *info.Free)
}
