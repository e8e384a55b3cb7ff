package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type destroyRecorder struct {
	name string
	log  *[]string
}

func (d destroyRecorder) Destroy() { *d.log = append(*d.log, d.name) }

func TestReleaseStackRunsInReverse(t *testing.T) {
	var log []string
	var s releaseStack
	s.track(destroyRecorder{"a", &log})
	s.push(func() { log = append(log, "b") })
	s.track(destroyRecorder{"c", &log})
	require.Equal(t, 3, s.len())

	s.releaseAll()
	require.Equal(t, []string{"c", "b", "a"}, log)
	require.Zero(t, s.len())

	s.releaseAll()
	require.Len(t, log, 3)
}
