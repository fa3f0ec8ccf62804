package descriptor

// Engine identifies how a model is executed by the serving runtime.
type Engine string

const (
	EngineONNX     Engine = "onnx"
	EnginePython   Engine = "python"
	EngineEnsemble Engine = "ensemble"
)

// Valid reports whether the engine is one of the supported kinds.
func (e Engine) Valid() bool {
	return e == EngineONNX || e == EnginePython || e == EngineEnsemble
}

// Backend returns the serving backend string for non-ensemble engines.
func (e Engine) Backend() string {
	switch e {
	case EngineONNX:
		return "onnxruntime"
	case EnginePython:
		return "python"
	default:
		return ""
	}
}

// Tensor describes one externally visible input or output of a model.
// Name is unique within its owning tensor list. Dims is the rendered
// dims token (remaps already applied, see NewDimsToken).
type Tensor struct {
	Name     string
	DataType Token
	Dims     Token
}

// InstanceGroupKind selects the hardware class of an instance group.
type InstanceGroupKind string

const (
	KindCPU InstanceGroupKind = "cpu"
	KindGPU InstanceGroupKind = "gpu"
)

// Token returns the serving runtime's kind symbol.
func (k InstanceGroupKind) Token() Token {
	if k == KindGPU {
		return NewScalarToken("KIND_GPU")
	}
	return NewScalarToken("KIND_CPU")
}

// InstanceGroup declares how many execution instances of a model run
// and on which hardware.
type InstanceGroup struct {
	Kind  InstanceGroupKind
	Count *int64  // emitted for gpu groups only
	GPUs  []int64 // explicit device indices
}

// MapEntry binds a model's own tensor name (Key) to a pipeline-level
// wire name (Value) inside an ensemble scheduling step.
type MapEntry struct {
	Key   string
	Value string
}

// LatestVersion is the sentinel meaning "serve the newest version".
const LatestVersion int64 = -1

// SchedulingStep is one stage of an ensemble pipeline.
// InputMap and OutputMap keep their construction order; the wiring
// resolver may prune unconsumed output entries before rendering.
type SchedulingStep struct {
	ModelName    string
	ModelVersion int64
	InputMap     []MapEntry
	OutputMap    []MapEntry
}

// DynamicBatching carries the optional dynamic batching block.
type DynamicBatching struct {
	MaxQueueDelayMicroseconds *int64
}

// ModelDescriptor is the fully resolved, serialization-ready
// representation of one deployable model. Exactly one of the
// engine-specific sections is populated, selected by Engine:
// SchedulingSteps for ensembles, nothing extra for onnx and python
// (their artifacts are side effects of tensor derivation).
type ModelDescriptor struct {
	Name            string
	Engine          Engine
	MaxBatchSize    int64
	Inputs          []Tensor
	Outputs         []Tensor
	DynamicBatching *DynamicBatching
	InstanceGroups  []InstanceGroup
	SchedulingSteps []SchedulingStep
}
