// Package descriptor owns the descriptor set layout, the pool and one set
// per frame slot.
package descriptor

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
)

const (
	UniformBinding = 0
	SamplerBinding = 1
)

// LayoutBindings: the uniform block for the vertex stage and the texture for
// the fragment stage.
func LayoutBindings() []gpu.DescriptorSetLayoutBinding {
	return []gpu.DescriptorSetLayoutBinding{
		{Binding: UniformBinding, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
		{Binding: SamplerBinding, Type: gpu.DescriptorTypeCombinedImageSampler, Count: 1, Stages: gpu.ShaderStageFragment},
	}
}

// PoolInfo sizes a pool for sets sets of LayoutBindings.
func PoolInfo(sets uint32) gpu.DescriptorPoolCreateInfo {
	return gpu.DescriptorPoolCreateInfo{
		MaxSets: sets,
		Sizes: []gpu.DescriptorPoolSize{
			{Type: gpu.DescriptorTypeUniformBuffer, Count: sets},
			{Type: gpu.DescriptorTypeCombinedImageSampler, Count: sets},
		},
	}
}

// Texture is the shared sampled image every set points at.
type Texture struct {
	View    gpu.ImageView
	Sampler gpu.Sampler
}

type Manager struct {
	dev    gpu.Device
	log    *slog.Logger
	layout gpu.DescriptorSetLayout
	pool   gpu.DescriptorPool
	sets   []gpu.DescriptorSet
	slots  uint32
}

// NewManager creates the set layout and a pool with room for slots sets.
func NewManager(dev gpu.Device, slots int, log *slog.Logger) (*Manager, error) {
	m := &Manager{dev: dev, log: log, slots: uint32(slots)}
	layout, err := dev.CreateDescriptorSetLayout(LayoutBindings())
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	m.layout = layout
	pool, err := dev.CreateDescriptorPool(PoolInfo(m.slots))
	if err != nil {
		m.Destroy()
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	m.pool = pool
	return m, nil
}

func (m *Manager) Layout() gpu.DescriptorSetLayout { return m.layout }

// Allocate creates one set per uniform buffer, in slot order, each bound to
// its buffer and to tex.
func (m *Manager) Allocate(uniforms []gpu.Buffer, uniformSize gpu.DeviceSize, tex Texture) error {
	if len(uniforms) != int(m.slots) {
		return errors.AssertionFailedf("%d uniform buffers for %d slots", len(uniforms), m.slots)
	}
	layouts := make([]gpu.DescriptorSetLayout, m.slots)
	for i := range layouts {
		layouts[i] = m.layout
	}
	sets, err := m.dev.AllocateDescriptorSets(m.pool, layouts)
	if err != nil {
		return errors.Wrap(err, "allocate descriptor sets")
	}
	m.sets = sets

	writes := make([]gpu.DescriptorWrite, 0, 2*len(sets))
	for i, set := range sets {
		writes = append(writes,
			gpu.DescriptorWrite{
				Set:     set,
				Binding: UniformBinding,
				Type:    gpu.DescriptorTypeUniformBuffer,
				Buffer:  &gpu.DescriptorBufferInfo{Buffer: uniforms[i], Offset: 0, Range: uniformSize},
			},
			gpu.DescriptorWrite{
				Set:     set,
				Binding: SamplerBinding,
				Type:    gpu.DescriptorTypeCombinedImageSampler,
				Image: &gpu.DescriptorImageInfo{
					Sampler: tex.Sampler,
					View:    tex.View,
					Layout:  gpu.ImageLayoutShaderReadOnlyOptimal,
				},
			})
	}
	m.dev.UpdateDescriptorSets(writes)
	m.log.Debug("descriptor sets written", slog.Int("sets", len(sets)))
	return nil
}

// Set returns the descriptor set of frame slot i.
func (m *Manager) Set(i int) gpu.DescriptorSet { return m.sets[i] }

// Destroy frees the pool, and with it the sets, then the layout.
func (m *Manager) Destroy() {
	if m == nil {
		return
	}
	m.dev.DestroyDescriptorPool(m.pool)
	m.dev.DestroyDescriptorSetLayout(m.layout)
	m.pool, m.layout, m.sets = 0, 0, nil
}
