package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusError, true},
	}
	for _, tt := range tests {
		j := &Job{Status: tt.status}
		assert.Equal(t, tt.want, j.Terminal(), "status %s", tt.status)
	}
}

func TestStemsRoundTrip(t *testing.T) {
	assert.Equal(t, "vocals,drums,bass,other", joinStems([]string{"vocals", "drums", "bass", "other"}))
	assert.Equal(t, []string{"vocals", "drums"}, splitStems("vocals,drums"))
	assert.Nil(t, splitStems(""))
	assert.Equal(t, []string{"vocals"}, splitStems("vocals, ,"))
}
