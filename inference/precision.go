package inference

// Precision is the numeric precision an accelerator compiles the model for.
type Precision string

// Precision constants accepted by the OpenVINO execution provider.
const (
	PrecisionFP32     Precision = "FP32"
	PrecisionFP16     Precision = "FP16"
	PrecisionAccuracy Precision = "ACCURACY"
)

// Valid reports whether p is empty or one of the known precisions.
func (p Precision) Valid() bool {
	switch p {
	case "", PrecisionFP32, PrecisionFP16, PrecisionAccuracy:
		return true
	}
	return false
}
