package filestorage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorFolder(t *testing.T) {
	assert.Equal(t, "JUAN_PEREZ", SupervisorFolder("Juan Perez"))
	assert.Equal(t, "SIN_SUPERVISOR", SupervisorFolder("SIN SUPERVISOR"))
}

func TestLinkUploaderDisabled(t *testing.T) {
	u := NewLinkUploader(" ")
	assert.False(t, u.Enabled())
	assert.ErrorIs(t, u.Upload(context.Background(), "A", "2025-01-02", "a.pdf", nil), ErrUploadLinkNotConfigured)
}

func TestLinkUploaderUpload(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	u := NewLinkUploader(srv.URL + "/share/")
	require.NoError(t, u.Upload(context.Background(), "Juan Perez", "2025-01-02", "ATS_1.pdf", []byte("%PDF")))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/share/JUAN_PEREZ/2025-01-02/ATS_1.pdf", gotPath)
	assert.Equal(t, []byte("%PDF"), gotBody)
}

func TestLinkUploaderEscapesSegments(t *testing.T) {
	u := NewLinkUploader("https://share.example.com/root")
	assert.Equal(t, "https://share.example.com/root/A%2FB%3FC%23D/2025-01-02/ATS_1.pdf", u.UploadURL("a/b?c#d", "2025-01-02", "ATS_1.pdf"))

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		assert.Empty(t, r.URL.RawQuery)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	require.NoError(t, NewLinkUploader(srv.URL).Upload(context.Background(), "../Jefe/x?y", "2025-01-02", "ATS 1.pdf", []byte("%PDF")))
	assert.Equal(t, "/..%2FJEFE%2FX%3FY/2025-01-02/ATS%201.pdf", gotPath)
}

func TestLinkUploaderStatus(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNoContent} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		assert.NoError(t, NewLinkUploader(srv.URL).Upload(context.Background(), "A", "d", "a.pdf", []byte("x")))
		srv.Close()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("access denied"))
	}))
	defer srv.Close()

	err := NewLinkUploader(srv.URL).Upload(context.Background(), "A", "d", "a.pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "access denied")
}

func TestLinkUploaderServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := NewLinkUploader(srv.URL)
	u.client.RetryMax = 1
	u.client.RetryWaitMin = 0
	u.client.RetryWaitMax = 0

	assert.Error(t, u.Upload(context.Background(), "A", "d", "a.pdf", []byte("x")))
	assert.Equal(t, int32(2), calls.Load())
}
