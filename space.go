package trove

import "fmt"

// FeatureSpace identifies one of the fixed vector collections a Store
// maintains. Each space has its own index, label sidecar and
// standardization statistics, but all spaces share one ordinal sequence
// per stored row.
type FeatureSpace int

const (
	// SpaceProduct holds text embeddings of product descriptions.
	SpaceProduct FeatureSpace = iota
	// SpaceFinancial holds standardized transaction feature vectors.
	SpaceFinancial
	// SpaceTime holds standardized scalar timestamps.
	SpaceTime
)

// Spaces returns all feature spaces in declaration order.
func Spaces() []FeatureSpace {
	return []FeatureSpace{SpaceProduct, SpaceFinancial, SpaceTime}
}

// Dimension returns the vector length of the space.
func (s FeatureSpace) Dimension() int {
	switch s {
	case SpaceProduct:
		return 384
	case SpaceFinancial:
		return 4
	case SpaceTime:
		return 1
	default:
		return 0
	}
}

// Standardized reports whether vectors in this space are standardized
// against running statistics before storage and search. Embedding output
// is used as-is.
func (s FeatureSpace) Standardized() bool {
	return s == SpaceFinancial || s == SpaceTime
}

func (s FeatureSpace) String() string {
	switch s {
	case SpaceProduct:
		return "product"
	case SpaceFinancial:
		return "financial"
	case SpaceTime:
		return "time"
	default:
		return fmt.Sprintf("FeatureSpace(%d)", int(s))
	}
}

// Valid reports whether s is a known feature space.
func (s FeatureSpace) Valid() bool {
	return s >= SpaceProduct && s <= SpaceTime
}
