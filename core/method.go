package core

import (
	"fmt"
	"strings"
)

// Method selects a query-translation strategy.
type Method string

const (
	// MethodMultiQuery rewrites the query several ways and answers from the union of results.
	MethodMultiQuery Method = "multi_query"
	// MethodFusion rewrites the query several ways and answers from the RRF-fused ranking.
	MethodFusion Method = "fusion"
	// MethodDecomposition splits the query into sub-questions solved in order.
	MethodDecomposition Method = "decomposition"
)

// Methods lists every supported method in a stable order.
var Methods = []Method{MethodMultiQuery, MethodFusion, MethodDecomposition}

// ParseMethod resolves a method name case-insensitively.
func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(name)))
	switch m {
	case MethodMultiQuery, MethodFusion, MethodDecomposition:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// String implements fmt.Stringer.
func (m Method) String() string {
	return string(m)
}
