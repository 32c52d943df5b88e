package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestDriveDownload(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nlogo")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/files/logo-1") || r.URL.Query().Get("alt") != "media" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	d, err := NewDriveWithOptions(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	data, err := d.Download(context.Background(), "logo-1")
	require.NoError(t, err)
	assert.Equal(t, png, data)

	_, err = d.Download(context.Background(), "missing")
	assert.Error(t, err)
}
