package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = New(10, 1, "user", "error.user.not_found", "用户不存在", http.StatusNotFound)

func TestNew(t *testing.T) {
	assert.Equal(t, 100001, errNotFound.Code())
	assert.Equal(t, "user", errNotFound.Module())
	assert.Equal(t, "error.user.not_found", errNotFound.MsgKey())
	assert.Equal(t, "用户不存在", errNotFound.Error())
	assert.Equal(t, http.StatusNotFound, errNotFound.HTTPStatus())

	assert.Equal(t, http.StatusInternalServerError, New(10, 2, "user", "k", "m").HTTPStatus())
}

func TestLayeredError_Wrap(t *testing.T) {
	cause := errors.New("record not found")
	err := errNotFound.Wrap(cause)

	assert.Equal(t, "用户不存在: record not found", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, errNotFound)
	assert.Same(t, errNotFound, errNotFound.Wrap(nil))

	wrapped := errNotFound.Wrapf(cause, "user %d missing", 7)
	assert.Equal(t, "user 7 missing: record not found", wrapped.Error())
	assert.Equal(t, "用户不存在", errNotFound.Message())
}

func TestLayeredError_Immutable(t *testing.T) {
	withData := errNotFound.WithData("id", 1).WithData("name", "x")
	assert.Equal(t, map[string]interface{}{"id": 1, "name": "x"}, withData.Data())
	assert.Empty(t, errNotFound.Data())

	// Data 返回副本
	withData.Data()["id"] = 2
	assert.Equal(t, 1, withData.Data()["id"])

	changed := errNotFound.WithMsg("gone").WithHTTPStatus(http.StatusGone)
	assert.Equal(t, "gone", changed.Message())
	assert.Equal(t, http.StatusGone, changed.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, errNotFound.HTTPStatus())
	assert.ErrorIs(t, changed, errNotFound)
	assert.NotErrorIs(t, changed, New(10, 2, "user", "k", "m"))
}

func TestFromError(t *testing.T) {
	err := fmt.Errorf("handler: %w", errNotFound.WithMsgf("user %s missing", "bob"))

	layered, ok := FromError(err)
	require.True(t, ok)
	assert.Equal(t, 100001, layered.Code())
	assert.Equal(t, http.StatusNotFound, HTTPStatusOf(err))

	_, ok = FromError(errors.New("plain"))
	assert.False(t, ok)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusOf(errors.New("plain")))
}
