package compiler

import (
	"fmt"

	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/descriptor"
)

// FormatEnsemble resolves an ensemble model: its exposed interface is
// inferred from the first and last stage, and each stage's declared
// tensors are name-mapped onto pipeline-level wire names.
//
// Precondition: every model referenced by the steps has already derived
// its tensors. The builder processes models in declaration order, so a
// violation means the ensemble is declared before one of its stages;
// the error names the model that must come first.
//
// The resolver is two-pass: mappings are synthesized forward from
// positional convention, then a single cleanup pass drops output
// mappings whose wire name no downstream stage consumes. This avoids
// any forward-reference bookkeeping; pipelines are linear chains.
func FormatEnsemble(name string, spec config.ModelSpec, table Table) (IO, []descriptor.SchedulingStep, error) {
	for _, step := range spec.Steps {
		if _, ok := table.Get(step.Model); !ok {
			return IO{}, nil, compileErrorf(name, ErrOrdering,
				"step model %q has no derived tensors yet; declare ensemble %q after %q",
				step.Model, name, step.Model)
		}
	}

	steps := spec.Steps
	first, _ := table.Get(steps[0].Model)
	last, _ := table.Get(steps[len(steps)-1].Model)

	// External interface: first stage's inputs and last stage's outputs,
	// verbatim but renamed to the ensemble's own namespace.
	var io IO
	for i, t := range first.Inputs {
		t.Name = fmt.Sprintf("%s_input_%d", name, i+1)
		io.Inputs = append(io.Inputs, t)
	}
	for i, t := range last.Outputs {
		t.Name = fmt.Sprintf("%s_output_%d", name, i+1)
		io.Outputs = append(io.Outputs, t)
	}

	scheduling := make([]descriptor.SchedulingStep, 0, len(steps))
	// Wire names produced by the previous stage, in output order.
	var prevOutputs []string

	for stepIdx, step := range steps {
		version, err := resolveStepVersion(name, step)
		if err != nil {
			return IO{}, nil, err
		}
		stage, _ := table.Get(step.Model)

		resolved := descriptor.SchedulingStep{
			ModelName:    step.Model,
			ModelVersion: version,
		}

		for i, in := range stage.Inputs {
			var wire string
			switch {
			case stepIdx == 0:
				wire = fmt.Sprintf("%s_input_%d", name, i+1)
			case i < len(prevOutputs):
				wire = prevOutputs[i]
			default:
				// Previous stage produced fewer outputs than this stage
				// has inputs; synthesize a fresh unbound wire.
				wire = fmt.Sprintf("%s_input_map_%d", step.Model, i+1)
			}
			resolved.InputMap = append(resolved.InputMap, descriptor.MapEntry{
				Key:   in.Name,
				Value: wire,
			})
		}

		var produced []string
		for i, out := range stage.Outputs {
			var wire string
			if stepIdx == len(steps)-1 {
				wire = fmt.Sprintf("%s_output_%d", name, i+1)
			} else {
				wire = fmt.Sprintf("%s_output_map_%d", step.Model, i+1)
				produced = append(produced, wire)
			}
			resolved.OutputMap = append(resolved.OutputMap, descriptor.MapEntry{
				Key:   out.Name,
				Value: wire,
			})
		}

		prevOutputs = produced
		scheduling = append(scheduling, resolved)
	}

	pruneUnusedOutputs(io, scheduling)
	return io, scheduling, nil
}

// resolveStepVersion maps "latest" to the sentinel and keeps explicit
// integers; anything else is rejected.
func resolveStepVersion(ensemble string, step config.StepSpec) (int64, error) {
	if n, ok := step.Version.Number(); ok {
		return n, nil
	}
	if step.Version.Word() == "latest" {
		return descriptor.LatestVersion, nil
	}
	return 0, compileErrorf(ensemble, ErrInvalidVersion,
		"step %q version %q is not valid; must be an integer or \"latest\"",
		step.Model, step.Version.String())
}

// pruneUnusedOutputs drops every output mapping whose wire name is
// neither part of the ensemble's external interface nor consumed by
// any stage's input mapping. What remains satisfies the closure
// property: each surviving output wire is read somewhere.
func pruneUnusedOutputs(io IO, steps []descriptor.SchedulingStep) {
	used := make(map[string]bool)
	for _, t := range io.Inputs {
		used[t.Name] = true
	}
	for _, t := range io.Outputs {
		used[t.Name] = true
	}
	for _, step := range steps {
		for _, entry := range step.InputMap {
			used[entry.Value] = true
		}
	}

	for i := range steps {
		kept := steps[i].OutputMap[:0]
		for _, entry := range steps[i].OutputMap {
			if used[entry.Value] {
				kept = append(kept, entry)
			}
		}
		steps[i].OutputMap = kept
	}
}
