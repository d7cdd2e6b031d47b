package forest

// #region labels
// Class labels. Positive is the class of interest (did not survive).
const (
	Negative = 0
	Positive = 1
)

// #endregion labels

// #region config
// Config holds the fixed ensemble hyperparameters.
type Config struct {
	NumTrees    int // ensemble size
	MTry        int // features tried per split; 0 means floor(sqrt(p))
	MinNodeSize int // nodes smaller than this are not split
	Workers     int // parallel tree builders; 0 means GOMAXPROCS, 1 means sequential
}

// DefaultConfig returns a 10-tree ensemble grown to purity.
func DefaultConfig() Config {
	return Config{
		NumTrees:    10,
		MTry:        0,
		MinNodeSize: 1,
		Workers:     0,
	}
}

// #endregion config

// #region tree
// Node is one node of a classification tree. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Class     int     `json:"class"`
	Counts    [2]int  `json:"counts"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// #endregion tree

// #region forest
// Forest is a trained bagged ensemble of classification trees.
type Forest struct {
	Features []string `json:"features"`
	MTry     int      `json:"mtry"`
	Trees    []Tree   `json:"trees"`

	// GiniDecrease is the total weighted impurity decrease per feature summed over all trees.
	GiniDecrease []float64 `json:"gini_decrease"`

	// OOBError is the out-of-bag misclassification rate; -1 if no sample was ever out of bag.
	OOBError float64 `json:"oob_error"`
}

// FeatureScore pairs a feature with its importance.
type FeatureScore struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// #endregion forest
