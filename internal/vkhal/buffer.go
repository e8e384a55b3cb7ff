package vkhal

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"Trigon/internal/hal"
)

type buffer struct {
	device *Device
	handle vulkan.Buffer
	memory vulkan.DeviceMemory
	size   uint64
	// staged buffers live in device-local memory and are written through a
	// temporary host-visible buffer.
	staged bool
}

func (b *buffer) Size() uint64 { return b.size }

func (b *buffer) Destroy() {
	vulkan.DestroyBuffer(b.device.device, b.handle, nil)
	vulkan.FreeMemory(b.device.device, b.memory, nil)
}

func (b *buffer) Write(data []byte) error {
	if uint64(len(data)) > b.size {
		return errors.Errorf("write %d bytes into %d byte buffer", len(data), b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if !b.staged {
		return b.device.upload(b.memory, data)
	}

	staging, err := b.device.newBuffer(uint64(len(data)),
		vulkan.BufferUsageFlags(vulkan.BufferUsageTransferSrcBit),
		vulkan.MemoryPropertyHostVisibleBit|vulkan.MemoryPropertyHostCoherentBit)
	if err != nil {
		return errors.Wrap(err, "create staging buffer")
	}
	defer staging.Destroy()

	if err := b.device.upload(staging.memory, data); err != nil {
		return err
	}
	return b.device.runOnce(func(cb vulkan.CommandBuffer) {
		vulkan.CmdCopyBuffer(cb, staging.handle, b.handle, 1, []vulkan.BufferCopy{{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vulkan.DeviceSize(len(data)),
		}})
	})
}

// CreateBuffer allocates a buffer in host-visible coherent memory, or in
// device-local memory filled by staged copies.
func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if desc.Size == 0 {
		return nil, errors.New("create buffer: zero size")
	}
	usage := vulkan.BufferUsageFlags(desc.Usage)
	properties := vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit
	staged := desc.Location == hal.MemoryDeviceLocal
	if staged {
		usage |= vulkan.BufferUsageFlags(vulkan.BufferUsageTransferDstBit)
		properties = vulkan.MemoryPropertyDeviceLocalBit
	}
	b, err := d.newBuffer(desc.Size, usage, properties)
	if err != nil {
		return nil, err
	}
	b.staged = staged
	return b, nil
}

func (d *Device) newBuffer(size uint64, usage vulkan.BufferUsageFlags, properties vulkan.MemoryPropertyFlagBits) (*buffer, error) {
	bufferInfo := vulkan.BufferCreateInfo{
		SType:       vulkan.StructureTypeBufferCreateInfo,
		Size:        vulkan.DeviceSize(size),
		Usage:       usage,
		SharingMode: vulkan.SharingModeExclusive,
	}
	var handle vulkan.Buffer
	if err := check(vulkan.CreateBuffer(d.device, &bufferInfo, nil, &handle), "create buffer"); err != nil {
		return nil, err
	}

	var req vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(d.device, handle, &req)
	req.Deref()

	memory, err := d.allocate(req, properties)
	if err != nil {
		vulkan.DestroyBuffer(d.device, handle, nil)
		return nil, errors.Wrap(err, "allocate buffer memory")
	}
	if err := check(vulkan.BindBufferMemory(d.device, handle, memory, 0), "bind buffer memory"); err != nil {
		vulkan.DestroyBuffer(d.device, handle, nil)
		vulkan.FreeMemory(d.device, memory, nil)
		return nil, err
	}
	return &buffer{device: d, handle: handle, memory: memory, size: size}, nil
}

// upload copies data to the start of host-visible memory.
func (d *Device) upload(memory vulkan.DeviceMemory, data []byte) error {
	size := vulkan.DeviceSize(len(data))
	var mapped unsafe.Pointer
	if err := check(vulkan.MapMemory(d.device, memory, 0, size, 0, &mapped), "map buffer memory"); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(mapped), len(data)), data)
	vulkan.UnmapMemory(d.device, memory)
	return nil
}
