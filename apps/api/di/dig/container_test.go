package dig_container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
)

func TestNew_memoryStorage(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "roster.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{"students":[{"id":"S1","name":"Alice","class_id":"5B"}]}`), 0o600))

	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_DATABASE_STORAGE", core.StorageMemory)
	t.Setenv("TEST_ROSTER_SEEDFILE", seed)
	t.Setenv("TEST_SERVER_DISABLEREQLOGS", "true")

	c := New()
	err := c.Invoke(func(conf *core.Config, repos roster.Repository, server *echoapi.Server, closeResources Closer) {
		defer func() { assert.NoError(t, closeResources()) }()

		assert.True(t, conf.TestMode)

		st, err := repos.GetStudent(context.Background(), "S1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", st.Name)

		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	require.NoError(t, err)
}

func TestNewCloser(t *testing.T) {
	var calls []string
	closer := func(name string, err error) Closer {
		return func() error {
			calls = append(calls, name)
			return err
		}
	}

	tests := []struct {
		name    string
		closers []Closer
		wantErr string
	}{
		{name: "nothing to close"},
		{name: "all closed", closers: []Closer{closer("db", nil), closer("redis", nil)}},
		{
			name:    "keeps closing after a failure",
			closers: []Closer{closer("db", errors.New("db busy")), closer("redis", errors.New("redis gone"))},
			wantErr: "db busy",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			err := newCloser(closersParam{Closers: tt.closers})()
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, calls, len(tt.closers))
		})
	}
}
