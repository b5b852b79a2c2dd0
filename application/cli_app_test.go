package application

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func TestCLIApplication_Execute(t *testing.T) {
	var out bytes.Buffer
	root := &cobra.Command{Use: "bucketctl"}
	app, err := NewCLI(testOptions(t), root)
	require.NoError(t, err)

	app.AddCommand(&cobra.Command{
		Use: "allow",
		RunE: func(cmd *cobra.Command, args []string) error {
			lm, err := app.LimiterManager()
			if err != nil {
				return err
			}
			for i := 0; i < 4; i++ {
				ok, err := lm.Allow(cmd.Context(), "GET:/api/login")
				if err != nil {
					return err
				}
				cmd.Printf("%v ", ok)
			}
			return nil
		},
	})
	root.SetOut(&out)

	require.NoError(t, app.Execute("allow"))
	assert.Equal(t, "true true true false ", out.String())
	assert.Equal(t, StateStopped, app.GetState())
	assert.Same(t, root, app.RootCmd())
}

func TestCLIApplication_CommandError(t *testing.T) {
	boom := errors.New("boom")
	root := &cobra.Command{
		Use:           "bucketctl",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(*cobra.Command, []string) error { return boom },
	}
	root.SetArgs([]string{})
	app, err := NewCLI(testOptions(t), root)
	require.NoError(t, err)

	err = app.Execute()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateStopped, app.GetState())
}
