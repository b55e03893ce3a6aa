//go:build !(sqlite_vec && cgo)

package vectorstore

import (
	"database/sql/driver"
	"fmt"

	sqlite "modernc.org/sqlite"
)

const driverName = "sqlite"

var serializeVector = encodeVector

func init() {
	_ = sqlite.RegisterDeterministicScalarFunction("vec_distance_cosine", 2, distanceFunc(MetricCosine))
	_ = sqlite.RegisterDeterministicScalarFunction("vec_distance_l2", 2, distanceFunc(MetricEuclidean))
}

func distanceFunc(metric Metric) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		a, err := vectorArg(args[0])
		if err != nil {
			return nil, err
		}
		b, err := vectorArg(args[1])
		if err != nil {
			return nil, err
		}
		return Distance(metric, a, b)
	}
}

func vectorArg(v driver.Value) ([]float32, error) {
	blob, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("vector argument must be a blob, got %T", v)
	}
	return decodeVector(blob)
}
