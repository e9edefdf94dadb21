package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arg  string
		want Mode
	}{
		{"web", ModeWeb},
		{"web-dev", ModeWebDev},
		{"worker", ModeWorker},
		{"test", ModeTest},
		{"bash", ModeBash},
		{"sh", ModePassthrough},
		{"WEB", ModePassthrough},
		{"python", ModePassthrough},
		{"", ModePassthrough},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.arg, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ParseMode(tc.arg))
		})
	}
}
