package vkhal

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

var (
	// ErrNoSuitableDevice is returned when no physical device offers a
	// graphics queue, a present queue, the swapchain extension and at least
	// one surface format and present mode.
	ErrNoSuitableDevice = errors.New("no suitable GPU found")

	// ErrTimeout is returned when a bounded fence wait expires.
	ErrTimeout = errors.New("wait timed out")

	errValidationUnavailable = errors.New("requested validation layers not available")
)

// check turns a failed result into an error carrying a stack.
func check(res vulkan.Result, op string) error {
	if res == vulkan.Success {
		return nil
	}
	return errors.Wrap(resultError(res), op)
}

// resultError never returns nil, even for the informational codes the
// bindings do not name as errors.
func resultError(res vulkan.Result) error {
	if err := vulkan.Error(res); err != nil {
		return err
	}
	return errors.Errorf("vulkan result %d", res)
}

// presentStatus maps the result of an acquire or present call. Only results
// other than success, suboptimal and out-of-date are errors.
func presentStatus(res vulkan.Result, op string) (hal.Status, error) {
	switch res {
	case vulkan.Success:
		return hal.StatusOK, nil
	case vulkan.Suboptimal:
		return hal.StatusSuboptimal, nil
	case vulkan.ErrorOutOfDate:
		return hal.StatusOutOfDate, nil
	default:
		return hal.StatusFatal, errors.Wrap(resultError(res), op)
	}
}
