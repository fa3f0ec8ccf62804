package pbtxt

import (
	"fmt"

	"github.com/pipeforge/pipeforge/internal/descriptor"
)

// Document builds the ordered render tree for a model descriptor.
// Top-level field order is fixed by the serving runtime's convention:
// name, backend or platform, max_batch_size, the input and output
// blocks, ensemble scheduling, dynamic batching, instance groups.
//
// Positional fields carry per-position unique names ("input_1",
// "input_2", ...) and an explicit role; the renderer emits them under
// the repeated-field alias ("input").
func Document(m *descriptor.ModelDescriptor) *descriptor.Block {
	doc := descriptor.NewBlock()
	doc.Append("name", descriptor.String(m.Name))

	if m.Engine == descriptor.EngineEnsemble {
		doc.Append("platform", descriptor.String("ensemble"))
	} else {
		doc.Append("backend", descriptor.String(m.Engine.Backend()))
	}

	doc.Append("max_batch_size", descriptor.Int(m.MaxBatchSize))

	for i, t := range m.Inputs {
		doc.AppendRole(fmt.Sprintf("input_%d", i+1), descriptor.RoleInput,
			descriptor.List{tensorBlock(t)})
	}
	for i, t := range m.Outputs {
		doc.AppendRole(fmt.Sprintf("output_%d", i+1), descriptor.RoleOutput,
			descriptor.List{tensorBlock(t)})
	}

	if m.Engine == descriptor.EngineEnsemble {
		doc.Append("ensemble_scheduling", schedulingBlock(m.SchedulingSteps))
	}

	if m.DynamicBatching != nil {
		batching := descriptor.NewBlock()
		if m.DynamicBatching.MaxQueueDelayMicroseconds != nil {
			batching.Append("max_queue_delay_microseconds",
				descriptor.Int(*m.DynamicBatching.MaxQueueDelayMicroseconds))
		}
		doc.Append("dynamic_batching", batching)
	}

	if len(m.InstanceGroups) > 0 {
		groups := make(descriptor.List, 0, len(m.InstanceGroups))
		for _, g := range m.InstanceGroups {
			groups = append(groups, instanceGroupBlock(g))
		}
		doc.Append("instance_group", groups)
	}

	return doc
}

func tensorBlock(t descriptor.Tensor) *descriptor.Block {
	return descriptor.NewBlock().
		Append("name", descriptor.String(t.Name)).
		Append("data_type", t.DataType).
		Append("dims", t.Dims)
}

func schedulingBlock(steps []descriptor.SchedulingStep) *descriptor.Block {
	list := make(descriptor.List, 0, len(steps))
	for _, step := range steps {
		b := descriptor.NewBlock().
			Append("model_name", descriptor.String(step.ModelName)).
			Append("model_version", descriptor.Int(step.ModelVersion))
		for i, entry := range step.InputMap {
			b.AppendRole(fmt.Sprintf("input_map_%d", i+1), descriptor.RoleInputMap,
				mapEntryBlock(entry))
		}
		for i, entry := range step.OutputMap {
			b.AppendRole(fmt.Sprintf("output_map_%d", i+1), descriptor.RoleOutputMap,
				mapEntryBlock(entry))
		}
		list = append(list, b)
	}
	return descriptor.NewBlock().Append("step", list)
}

func mapEntryBlock(entry descriptor.MapEntry) *descriptor.Block {
	return descriptor.NewBlock().
		Append("key", descriptor.String(entry.Key)).
		Append("value", descriptor.String(entry.Value))
}

func instanceGroupBlock(g descriptor.InstanceGroup) *descriptor.Block {
	b := descriptor.NewBlock().Append("kind", g.Kind.Token())
	if g.Kind == descriptor.KindGPU && g.Count != nil {
		b.Append("count", descriptor.Int(*g.Count))
	}
	if len(g.GPUs) > 0 {
		b.Append("gpus", descriptor.NewDimsToken(g.GPUs, false))
	}
	return b
}
