// Package device picks a physical adapter and opens the logical device with
// its graphics and present queues.
package device

import (
	"sort"

	"golang.org/x/exp/slog"

	"github.com/hellhand/vkmesh/internal/gpu"
)

// SwapchainExtension is the only device extension the renderer needs.
const SwapchainExtension = "VK_KHR_swapchain"

const discreteBonus = 1000

// Candidate is one adapter as evaluated for rendering. Score 0 means unusable.
type Candidate struct {
	Adapter    gpu.Adapter
	Properties gpu.AdapterProperties
	Features   gpu.AdapterFeatures
	Queues     QueueFamilyIndices
	Score      int64
	// Reason names the first missing requirement of a rejected adapter.
	Reason string
}

// Score rates adapter properties: discrete GPUs get a flat bonus and larger
// maximum 2D image dimensions rank higher.
func Score(props gpu.AdapterProperties) int64 {
	var s int64
	if props.Type == gpu.AdapterTypeDiscreteGPU {
		s += discreteBonus
	}
	return s + int64(props.MaxImageDimension2D)
}

// Evaluate checks every hard requirement and scores the adapter. Query
// failures count as a missing requirement.
func Evaluate(a gpu.Adapter) Candidate {
	c := Candidate{
		Adapter:    a,
		Properties: a.Properties(),
		Features:   a.Features(),
		Queues:     FindQueueFamilies(a.QueueFamilies()),
	}
	c.Reason = missingRequirement(a, c)
	if c.Reason == "" {
		c.Score = Score(c.Properties)
	}
	return c
}

func missingRequirement(a gpu.Adapter, c Candidate) string {
	if !c.Queues.HasGraphics {
		return "no graphics queue"
	}
	if !c.Queues.HasPresent {
		return "no present queue"
	}
	exts, err := a.Extensions()
	if err != nil {
		return "extension query failed: " + err.Error()
	}
	found := false
	for _, e := range exts {
		if e == SwapchainExtension {
			found = true
			break
		}
	}
	if !found {
		return "missing " + SwapchainExtension
	}
	support, err := a.SurfaceSupport()
	if err != nil {
		return "surface query failed: " + err.Error()
	}
	if len(support.Formats) == 0 {
		return "no surface formats"
	}
	if len(support.PresentModes) == 0 {
		return "no present modes"
	}
	if !c.Features.SamplerAnisotropy {
		return "no anisotropic sampling"
	}
	return ""
}

// Select evaluates adapters and returns the best one. Equal scores keep
// enumeration order, so the first adapter wins a tie.
func Select(adapters []gpu.Adapter, log *slog.Logger) (Candidate, error) {
	candidates := make([]Candidate, len(adapters))
	for i, a := range adapters {
		c := Evaluate(a)
		candidates[i] = c
		attrs := []any{
			slog.String("name", c.Properties.Name),
			slog.String("type", c.Properties.Type.String()),
			slog.Int64("score", c.Score),
		}
		if c.Reason != "" {
			attrs = append(attrs, slog.String("rejected", c.Reason))
		}
		log.Debug("adapter", attrs...)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) == 0 || candidates[0].Score <= 0 {
		return Candidate{}, &gpu.NoSuitableDeviceError{Candidates: len(adapters)}
	}
	return candidates[0], nil
}
