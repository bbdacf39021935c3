package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverhub/pkg/sdk"
)

func TestFetchSnapshotSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: [{\"server_id\":\"a\",\"port\":1,\"status\":\"Running\"}]\n\n")
	}))
	defer srv.Close()

	servers, err := FetchSnapshot(context.Background(), sdk.NewClient(srv.URL))
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "a", servers[0].ID)
}

func TestFetchSnapshotEmptyStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	_, err := FetchSnapshot(context.Background(), sdk.NewClient(srv.URL))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFetchSnapshotHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := FetchSnapshot(ctx, sdk.NewClient(srv.URL))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
