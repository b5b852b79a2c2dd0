package validator

import (
	"errors"
	"testing"

	"github.com/KOMKZ/go-yogan-bucket/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTestInvalid = errcode.New(99, 1, "test", "error.test.invalid", "invalid", 400)

// mockValidatable 实现 Validatable 接口用于测试
type mockValidatable struct {
	err error
}

func (m mockValidatable) Validate() error { return m.err }

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(mockValidatable{}, errTestInvalid))
}

func TestValidate_ValidationErrors(t *testing.T) {
	err := Validate(mockValidatable{err: validation.Errors{
		"email":    errors.New("must be a valid email address"),
		"password": errors.New("cannot be blank"),
		"ok":       nil,
	}}, errTestInvalid)
	require.Error(t, err)

	assert.ErrorIs(t, err, errTestInvalid)
	var le *errcode.LayeredError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 400, le.HTTPStatus())

	fields, ok := le.Data()["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "cannot be blank", fields["password"])
	assert.NotContains(t, fields, "ok")
	assert.Equal(t, []string{"email", "password"}, Fields(err))

	// base 不被修改
	assert.Empty(t, errTestInvalid.Data())
}

func TestValidate_NestedErrors(t *testing.T) {
	err := Validate(mockValidatable{err: validation.Errors{
		"resources.api": validation.Errors{
			"bandwidths": validation.Errors{
				"0": validation.Errors{"period": errors.New("cannot be blank")},
			},
		},
		"store_type": errors.New("must be a valid value"),
	}}, errTestInvalid)

	assert.Equal(t, []string{"resources.api.bandwidths.0.period", "store_type"}, Fields(err))
}

func TestValidate_OtherError(t *testing.T) {
	custom := errors.New("overlap detected")
	err := Validate(mockValidatable{err: custom}, errTestInvalid)

	assert.ErrorIs(t, err, errTestInvalid)
	assert.ErrorIs(t, err, custom)
	assert.Nil(t, Fields(err))
}

func TestFields_NotLayered(t *testing.T) {
	assert.Nil(t, Fields(errors.New("plain")))
}
