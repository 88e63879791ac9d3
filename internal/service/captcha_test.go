package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// siteverify accepts the token "good" for secret "s3cret".
func siteverify(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "203.0.113.7", r.PostForm.Get("remoteip"))

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("response") {
		case "good":
			_, _ = w.Write([]byte(`{"success":true}`))
		case "boom":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRecaptchaVerify(t *testing.T) {
	var calls atomic.Int32
	srv := siteverify(t, &calls)
	v := NewCaptchaVerifier("s3cret", srv.URL)
	ctx := context.Background()

	ok, err := v.Verify(ctx, "good", "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(ctx, "forged", "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(ctx, "boom", "203.0.113.7")
	assert.Error(t, err)
	assert.False(t, ok)

	assert.Equal(t, int32(3), calls.Load())
}

func TestRecaptchaEmptyTokenSkipsProvider(t *testing.T) {
	var calls atomic.Int32
	srv := siteverify(t, &calls)
	v := NewCaptchaVerifier("s3cret", srv.URL)

	ok, err := v.Verify(context.Background(), "  ", "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, calls.Load())
}

func TestNewCaptchaVerifierWithoutSecretIsNoop(t *testing.T) {
	v := NewCaptchaVerifier("", "http://unused.invalid")
	assert.IsType(t, NoopCaptcha{}, v)
	ok, err := v.Verify(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, ok)
}
