package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashGenerators(t *testing.T) {
	h := SHA256()
	h.Write([]byte("bucket"))
	assert.Len(t, h.Sum(nil), 32)

	h = SHA512()
	h.Write([]byte("bucket"))
	assert.Len(t, h.Sum(nil), 64)
}

func TestXDGSCRAMClient(t *testing.T) {
	for _, gen := range []struct {
		name string
		c    *XDGSCRAMClient
	}{
		{"sha256", &XDGSCRAMClient{HashGeneratorFcn: SHA256}},
		{"sha512", &XDGSCRAMClient{HashGeneratorFcn: SHA512}},
	} {
		t.Run(gen.name, func(t *testing.T) {
			require.NoError(t, gen.c.Begin("bucket", "secret", ""))
			assert.False(t, gen.c.Done())

			// client-first message
			first, err := gen.c.Step("")
			require.NoError(t, err)
			assert.Contains(t, first, "n=bucket")
		})
	}
}
