// Package descriptor defines the data model shared by the pipeline
// compiler: tensors, per-model deployment descriptors, ensemble
// scheduling steps, and the document tree handed to the pbtxt renderer.
//
// Descriptors carry no behavior beyond construction helpers. A
// descriptor is populated in two phases (tensor derivation, then
// ensemble wiring for composite models) and is not mutated after it has
// been rendered.
package descriptor
