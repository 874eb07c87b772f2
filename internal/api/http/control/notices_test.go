package control

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sos-button/internal/trigger"
)

// TestNoticeLog_Ring keeps the newest notices in order once the ring wraps.
func TestNoticeLog_Ring(t *testing.T) {
	t.Parallel()

	log := NewNoticeLog(3)
	require.Empty(t, log.Recent())

	for i := range 5 {
		log.Notify(context.Background(), trigger.Notice{Text: strconv.Itoa(i)})
	}

	recent := log.Recent()
	require.Len(t, recent, 3)
	require.Equal(t, "2", recent[0].Text)
	require.Equal(t, "4", recent[2].Text)

	require.Len(t, NewNoticeLog(0).ring, DefaultNoticeCapacity)
}
