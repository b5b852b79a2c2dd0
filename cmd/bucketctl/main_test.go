package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestErrorsCmd(t *testing.T) {
	out, err := execute(t, "errors")
	require.NoError(t, err)

	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "error.limiter.wait_timeout")
	assert.Contains(t, out, "error.grid.conflict")
	assert.Contains(t, out, "error.application.invalid_server_config")
}

func TestValidateCmd(t *testing.T) {
	out, err := execute(t, "validate", "-c", "testdata/config.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "config ok (store_type=memory, enabled=true)")
	// viper 会把 key 转成小写
	assert.Contains(t, out, "/auth.authservice/login: 1 bandwidth(s)")
}

func TestValidateCmd_Invalid(t *testing.T) {
	out, err := execute(t, "validate", "-c", "testdata/invalid.yaml")
	require.Error(t, err)

	assert.Contains(t, out, "❌ limiter.store_type")
	assert.Contains(t, out, "❌ limiter.resources./orders")
	assert.Contains(t, out, "❌ server.http.key_func")
}

func TestValidateCmd_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", "-c", "testdata/nope.yaml")
	assert.Error(t, err)
}

func TestSimulateCmd(t *testing.T) {
	out, err := execute(t, "simulate", "-c", "testdata/config.yaml",
		"-r", "/auth.AuthService/Login", "--rate", "200", "-d", "300ms")
	require.NoError(t, err)

	assert.Regexp(t, `run [0-9a-f-]{36}: requests=\d+ allowed=5 rejected=\d+ errors=0`, out)
	assert.Contains(t, out, "capacity=5")
}

func TestSimulateCmd_Wait(t *testing.T) {
	out, err := execute(t, "simulate", "-c", "testdata/config.yaml",
		"-r", "/auth.AuthService/Refresh", "--rate", "100", "-d", "200ms", "--wait")
	require.NoError(t, err)

	assert.Regexp(t, `allowed=2 rejected=[1-9]\d* errors=0`, out)
}

func TestSimulateCmd_InvalidRequest(t *testing.T) {
	_, err := execute(t, "simulate", "-c", "testdata/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource")

	_, err = execute(t, "simulate", "-c", "testdata/config.yaml", "-r", "/orders", "--rate", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate")
}

func TestHashPasswordCmd(t *testing.T) {
	out, err := execute(t, "hash-password", "--cost", "4", "refill-rate-42")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("refill-rate-42")))

	_, err = execute(t, "hash-password", "--cost", "4", "short")
	assert.Error(t, err)

	out, err = execute(t, "hash-password", "--cost", "4", "--skip-policy", "short")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "$2a$04$"))
}

func TestHashPasswordCmd_Stdin(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetIn(strings.NewReader("refill-rate-42\n"))
	root.SetArgs([]string{"hash-password", "--cost", "4"})
	require.NoError(t, root.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("refill-rate-42")))
}
