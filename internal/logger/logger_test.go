package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		name        string
		verbose     bool
		expectDebug bool
	}{
		{name: "quiet by default", verbose: false, expectDebug: false},
		{name: "verbose enables debug", verbose: true, expectDebug: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := New(tc.verbose)
			require.NoError(t, err)
			require.NotNil(t, l)
			assert.Equal(t, tc.expectDebug, l.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tc.expectDebug, l.Core().Enabled(zapcore.ErrorLevel))
			Sync(l)
		})
	}
}
