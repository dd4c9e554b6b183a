package logging

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartup_Fail(t *testing.T) {
	var out bytes.Buffer
	s := &Startup{out: &out, command: "serve"}

	err := s.Fail("failed to load config", fmt.Errorf("open app.yaml: %w", os.ErrNotExist))
	require.Error(t, err)
	assert.Equal(t, "serve: failed to load config: open app.yaml: file does not exist\n", out.String())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, Reported(err))
	assert.True(t, Reported(fmt.Errorf("wrapped: %w", err)))

	out.Reset()
	err = s.Fail("config file is required", nil)
	assert.EqualError(t, err, "config file is required")
	assert.Equal(t, "serve: config file is required\n", out.String())

	assert.False(t, Reported(fmt.Errorf("plain")))
	assert.False(t, Reported(nil))
}
