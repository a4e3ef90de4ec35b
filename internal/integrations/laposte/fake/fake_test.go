package fake

import (
	"context"
	"testing"

	"github.com/BearBump/LetterTrack/internal/tracking"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_PayloadParsesAndIsDeterministic(t *testing.T) {
	f := New()

	first, err := f.Fetch(context.Background(), "LETTER-1")
	require.NoError(t, err)

	res, err := tracking.Parse(first)
	require.NoError(t, err)
	require.Len(t, res.Events, 2)

	status, err := res.LatestStatus()
	require.NoError(t, err)
	require.NotEmpty(t, status)

	// Финальность зависит только от shipment id.
	second, err := f.Fetch(context.Background(), "LETTER-1")
	require.NoError(t, err)
	res2, err := tracking.Parse(second)
	require.NoError(t, err)
	require.Equal(t, res.IsFinal, res2.IsFinal)
}
