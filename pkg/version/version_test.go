package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewerThan(t *testing.T) {
	assert.True(t, NewerThan("0.10.0", "0.9.3"), "numeric, not lexical")
	assert.True(t, NewerThan("v1.0.0", "0.12.7"))
	assert.True(t, NewerThan("1.2.4", "1.2.3-dirty"))
	assert.False(t, NewerThan("1.2.3", "1.2.3"))
	assert.False(t, NewerThan("1.2.3-rc1", "1.2.3"))
	assert.False(t, NewerThan("", "1.0.0"))
}

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"tag_name":"v1.4.0","name":"Leasing BI 1.4.0"}`))
	}))
	defer srv.Close()

	got, err := LatestRelease(context.Background(), srv.Client(), srv.URL+"/latest")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", got)

	_, err = LatestRelease(context.Background(), srv.Client(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestFormatVersion(t *testing.T) {
	saved := [3]string{Version, Commit, BuildTime}
	t.Cleanup(func() { Version, Commit, BuildTime = saved[0], saved[1], saved[2] })

	Version, Commit, BuildTime = "1.2.3", "", ""
	assert.Equal(t, "1.2.3 (development)", FormatVersion())

	Commit = "abc1234"
	assert.Equal(t, "1.2.3 (commit: abc1234)", FormatVersion())

	BuildTime = "2025-10-23T10:20:30Z"
	assert.Equal(t, "1.2.3 (commit: abc1234, built at: 2025-10-23T10:20:30Z)", FormatVersion())
}
