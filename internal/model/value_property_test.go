package model

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Properties of the property coercion policy.
func TestCoerceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integer text coerces to the same Int", prop.ForAll(
		func(n int64) bool {
			v := Coerce(strconv.FormatInt(n, 10))
			i, ok := v.Int()
			return ok && i == n
		},
		gen.Int64(),
	))

	properties.Property("non-integral float text coerces to Float", prop.ForAll(
		func(f float64) bool {
			s := strconv.FormatFloat(f, 'f', -1, 64)
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				return true // integral values are the integer branch
			}
			v := Coerce(s)
			got, ok := v.Float()
			return ok && v.Kind() == Float && got == f
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("alphabetic text is kept verbatim", prop.ForAll(
		func(s string) bool {
			if s == NoneLiteral {
				return Coerce(s).IsMissing()
			}
			if _, err := strconv.ParseFloat(s, 64); err == nil {
				return true // e.g. "Inf", "NaN"
			}
			got, ok := Coerce(s).Str()
			return ok && got == s
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
