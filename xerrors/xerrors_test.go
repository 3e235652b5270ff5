package xerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	base := errors.New("base error")
	wrapped := Wrap(base, "context")
	require.Error(t, wrapped)
	assert.Equal(t, "context: base error", wrapped.Error())
	assert.True(t, errors.Is(wrapped, base))

	assert.Nil(t, Wrapf(nil, "user %d", 1))
	assert.Equal(t, "user 123: base error", Wrapf(base, "user %d", 123).Error())
}

func TestWithCode(t *testing.T) {
	assert.Nil(t, WithCode(nil, "CODE"))

	coded := WithCode(errors.New("meta down"), "META_DOWN")
	assert.Equal(t, "[META_DOWN] meta down", coded.Error())
	assert.Equal(t, "META_DOWN", GetCode(Wrap(coded, "refresh")))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestCombine(t *testing.T) {
	assert.Nil(t, Combine(nil, nil))

	e1 := errors.New("e1")
	assert.Same(t, e1, Combine(nil, e1))

	e2 := errors.New("e2")
	multi := Combine(e1, nil, e2)
	assert.Equal(t, "e1 (and 1 more errors)", multi.Error())
	assert.True(t, errors.Is(multi, e2))

	var c Collector
	c.Collect(nil)
	c.Collect(e1)
	c.Collect(e2)
	assert.Same(t, e1, c.Err())
}

func TestMust(t *testing.T) {
	assert.Equal(t, 1, Must(1, nil))
	assert.Panics(t, func() { Must(0, errors.New("boom")) })
}

func TestNotFoundError(t *testing.T) {
	err := Wrap(NewNotFound("Could not find config for namespace app", nil), "get config")

	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, IsTransport(err))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Could not find config for namespace app", nf.Scene)
}

func TestStatusCodeError(t *testing.T) {
	err := NewStatusCode("Watch notifications failed", 500)
	assert.Equal(t, "Watch notifications failed. Http status code: 500", err.Error())

	code, ok := IsStatusCode(fmt.Errorf("wrapped: %w", err))
	assert.True(t, ok)
	assert.Equal(t, 500, code)

	_, ok = IsStatusCode(errors.New("other"))
	assert.False(t, ok)
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TransportError{Scene: "Get config failed", Code: "Unavailable", Cause: cause}

	assert.Equal(t, "Get config failed. Grpc status: Unavailable: connection refused", err.Error())
	assert.True(t, IsTransport(err))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "transport error", NewTransport("", nil).Error())
}

func TestNoServiceAvailableError(t *testing.T) {
	err := &NoServiceAvailableError{URL: "http://meta:8080/services/config?appId=demo"}

	assert.True(t, IsNoServiceAvailable(err))
	assert.Contains(t, err.Error(), "http://meta:8080/services/config?appId=demo")
}

func TestDiscoveryError(t *testing.T) {
	cause := NewStatusCode("", 503)
	err := &DiscoveryError{URL: "http://meta", Attempts: 2, Cause: cause}

	assert.True(t, errors.Is(err, ErrDiscovery))
	assert.True(t, errors.Is(err, ErrStatusCode))
	assert.Contains(t, err.Error(), "after 2 attempts")
}
