package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncdal/internal/dal/adapters/memory"
	"syncdal/internal/dal/manager"
	"syncdal/internal/dal/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *manager.Manager) {
	t.Helper()
	m := manager.New(nil, nil)
	t.Cleanup(m.Stop)
	_, err := m.AttachAdapter(types.KindUser, memory.New(types.KindUser), true)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(m, nil, nil).Setup())
	t.Cleanup(srv.Close)
	return srv, m
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetQueueInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/queues/user")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/queues/floppy")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetQueueParamsRoundTrip(t *testing.T) {
	srv, m := newTestServer(t)

	body := `{"mode":"all-read-all-write","max_read_failures":5,"max_write_failures":7,"failure_action":"drop-unless-last"}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/queues/user/params", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p, ok := m.GetQueueParams(types.KindUser)
	require.True(t, ok)
	assert.Equal(t, 5, p.MaxReadFailures)
	assert.Equal(t, 7, p.MaxWriteFailures)
	assert.Equal(t, "all-read-all-write", p.Mode.String())
	assert.Equal(t, "drop-unless-last", p.FailureAction.String())
}

func TestSetQueueParamsRejectsBadMode(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{"mode":"sometimes","max_read_failures":1,"max_write_failures":1,"failure_action":"ignore"}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/queues/user/params", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTimeoutRoundTrip(t *testing.T) {
	srv, m := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/timeout", strings.NewReader(`{"timeout_ms":1500}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1500), m.GetCallTimeout().Milliseconds())

	resp, err = http.Get(srv.URL + "/api/v1/timeout")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCacheParamsForUnknownAdapter(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/caches/user/99/params")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
