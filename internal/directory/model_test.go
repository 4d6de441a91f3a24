package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"checked_out", "checked_in", "on_break"} {
		got, err := ParseStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, Status(valid), got)
	}
	for _, invalid := range []string{"", "checked-in", "ON_BREAK", "asleep"} {
		_, err := ParseStatus(invalid)
		assert.ErrorIs(t, err, ErrUnknownStatus, "input %q", invalid)
	}
}
