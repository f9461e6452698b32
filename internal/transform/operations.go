package transform

// OperationKind enumerates every TransformOperation variant, including
// the legacy back-compat forms.
type OperationKind string

const (
	OpExtract  OperationKind = "extract"
	OpMap      OperationKind = "map"
	OpReduce   OperationKind = "reduce"
	OpFormat   OperationKind = "format"
	OpCompute  OperationKind = "compute"
	OpPipeline OperationKind = "pipeline"
	OpFork     OperationKind = "fork"
	OpIf       OperationKind = "if"
	OpGroupBy  OperationKind = "group_by"
	OpDecode   OperationKind = "decode"
	OpEncode   OperationKind = "encode"

	// Legacy, retained for back-compat with the same contracts.
	OpSingle               OperationKind = "single"
	OpArrayAggregation     OperationKind = "array_aggregation"
	OpTimeSeriesAggregation OperationKind = "time_series_aggregation"
	OpReference            OperationKind = "reference"
	OpCustom               OperationKind = "custom"
	OpMultiOutput          OperationKind = "multi_output"
)

// Aggregation enumerates the Reduce/GroupBy aggregation functions.
type Aggregation string

const (
	AggMean   Aggregation = "mean"
	AggMax    Aggregation = "max"
	AggMin    Aggregation = "min"
	AggSum    Aggregation = "sum"
	AggCount  Aggregation = "count"
	AggMedian Aggregation = "median"
	AggStddev Aggregation = "stddev"
	AggFirst  Aggregation = "first"
	AggLast   Aggregation = "last"
	AggTrend  Aggregation = "trend"
	AggDelta  Aggregation = "delta"
	AggRate   Aggregation = "rate"
)

// CodecFormat enumerates Decode/Encode formats.
type CodecFormat string

const (
	FormatHex    CodecFormat = "hex"
	FormatBase64 CodecFormat = "base64"
	FormatBytes  CodecFormat = "bytes"
	FormatCSV    CodecFormat = "csv"
	FormatURL    CodecFormat = "url"
)

// Operation is one node of a transform's operation tree. Only the fields
// relevant to Kind are populated; this mirrors a tagged union without
// resorting to `any` everywhere a concrete shape is known ahead of time.
type Operation struct {
	Kind OperationKind `json:"kind"`

	// Extract
	From    string `json:"from,omitempty"`
	Output  string `json:"output,omitempty"`
	AsType  string `json:"as_type,omitempty"`

	// Map
	Over     string `json:"over,omitempty"`
	Template string `json:"template,omitempty"`
	Filter   string `json:"filter,omitempty"`

	// Reduce / GroupBy
	Using Aggregation `json:"using,omitempty"`
	Value string      `json:"value,omitempty"`
	Key   string       `json:"key,omitempty"` // GroupBy

	// Compute / If
	Expression string      `json:"expression,omitempty"`
	Condition  string      `json:"condition,omitempty"`
	Then       []Operation `json:"then,omitempty"`
	Else       []Operation `json:"else,omitempty"`

	// Pipeline / Fork
	Steps    []Operation `json:"steps,omitempty"`
	Branches []Operation `json:"branches,omitempty"`

	// Decode / Encode
	Format CodecFormat `json:"format,omitempty"`

	// Legacy Reference
	ReferenceTable map[string]string `json:"reference_table,omitempty"`
}

// ComplexityScore derives the UI/priority complexity score: Extract=1,
// Map/Reduce/Compute=2, Pipeline/Fork/If = max or sum of children capped
// at 5.
func ComplexityScore(op Operation) int {
	switch op.Kind {
	case OpExtract, OpDecode, OpEncode, OpFormat:
		return 1
	case OpMap, OpReduce, OpCompute, OpGroupBy:
		return 2
	case OpPipeline:
		total := 0
		for _, s := range op.Steps {
			total += ComplexityScore(s)
		}
		return capAt5(total)
	case OpFork:
		max := 0
		for _, b := range op.Branches {
			if c := ComplexityScore(b); c > max {
				max = c
			}
		}
		return capAt5(max)
	case OpIf:
		max := 0
		for _, b := range append(append([]Operation{}, op.Then...), op.Else...) {
			if c := ComplexityScore(b); c > max {
				max = c
			}
		}
		return capAt5(max + 1)
	default:
		return 1
	}
}

func capAt5(n int) int {
	if n > 5 {
		return 5
	}
	if n < 1 {
		return 1
	}
	return n
}

// TransformComplexity sums the complexity of a transform's top-level
// operations, capped at 5, matching the scripted form's 1..5 scale.
func TransformComplexity(t Transform) int {
	if t.Scripted != nil {
		return t.Scripted.Complexity
	}
	total := 0
	for _, op := range t.Operations {
		total += ComplexityScore(op)
	}
	return capAt5(total)
}
