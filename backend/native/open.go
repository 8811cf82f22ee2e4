package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Open creates a standalone headless device on the first usable GPU
// adapter, preferring discrete over integrated. This is the path for
// command-line export where no host application supplies a device;
// embedders with their own GPU context should call New instead.
//
// The returned close function destroys the device and instance.
func Open(opts ...Option) (*Device, func(), error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, nil, fmt.Errorf("native: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, fmt.Errorf("native: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, fmt.Errorf("native: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, nil, fmt.Errorf("native: open adapter %q: %w", selected.Info.Name, err)
	}

	dev := New(openDev.Device, openDev.Queue,
		append([]Option{WithLimits(limits), WithName(selected.Info.Name)}, opts...)...)
	cleanup := func() {
		dev.Destroy()
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return dev, cleanup, nil
}
