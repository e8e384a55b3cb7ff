package vkhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

func TestPresentStatus(t *testing.T) {
	for _, tc := range []struct {
		res     vulkan.Result
		want    hal.Status
		wantErr bool
	}{
		{vulkan.Success, hal.StatusOK, false},
		{vulkan.Suboptimal, hal.StatusSuboptimal, false},
		{vulkan.ErrorOutOfDate, hal.StatusOutOfDate, false},
		{vulkan.ErrorDeviceLost, hal.StatusFatal, true},
		{vulkan.ErrorSurfaceLost, hal.StatusFatal, true},
		{vulkan.Timeout, hal.StatusFatal, true},
	} {
		t.Run(tc.want.String(), func(t *testing.T) {
			status, err := presentStatus(tc.res, "queue present")
			assert.Equal(t, tc.want, status)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "queue present")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	require.NoError(t, check(vulkan.Success, "create fence"))

	err := check(vulkan.ErrorOutOfDeviceMemory, "create fence")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create fence")

	// Informational codes still produce an error when treated as failure.
	require.Error(t, check(vulkan.NotReady, "query fence"))
}
