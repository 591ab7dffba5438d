package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// FPFlagPrefix marks the false-positive flag features.
const FPFlagPrefix = "koi_fpflag_"

// Class indices in predicted probability vectors.
const (
	ClassFalsePositive = 0
	ClassExoplanet     = 1
)

// Tree is one decision tree in the array layout scikit-learn uses for
// tree_: node i is a leaf when ChildrenLeft[i] == -1, otherwise samples go
// left when x[Feature[i]] <= Threshold[i].
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Model is a random forest exported to JSON.
type Model struct {
	FeatureColumns []string           `json:"feature_columns"`
	FeatureMedians map[string]float64 `json:"feature_medians"`
	Classes        []int              `json:"classes"`
	Trees          []Tree             `json:"trees"`
}

func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	m, err := ParseModel(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, nil
}

func ParseModel(r io.Reader) (*Model, error) {
	var m Model
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.FeatureColumns) == 0 {
		return errors.New("model has no feature columns")
	}
	if len(m.Classes) != 2 {
		return fmt.Errorf("model must be binary, got %d classes", len(m.Classes))
	}
	for _, col := range m.FeatureColumns {
		v, ok := m.FeatureMedians[col]
		if !ok {
			return fmt.Errorf("no median for feature %q", col)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("median for feature %q is not finite", col)
		}
	}
	if len(m.Trees) == 0 {
		return errors.New("model has no trees")
	}
	for i, t := range m.Trees {
		if err := t.validate(len(m.FeatureColumns), len(m.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t Tree) validate(features, classes int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != classes {
			return fmt.Errorf("node %d: value has %d entries", i, len(t.Value[i]))
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == -1 {
			continue
		}
		// children always come after their parent, which also rules out cycles
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if f := t.Feature[i]; f < 0 || f >= features {
			return fmt.Errorf("node %d: feature index %d out of range", i, f)
		}
	}
	return nil
}

// leaf returns the class distribution of the leaf x falls into.
func (t Tree) leaf(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// PredictProba averages the normalized leaf distributions of every tree.
// x must follow FeatureColumns order.
func (m *Model) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(m.FeatureColumns) {
		return nil, fmt.Errorf("expected %d features, got %d", len(m.FeatureColumns), len(x))
	}

	proba := make([]float64, len(m.Classes))
	for _, t := range m.Trees {
		v := t.leaf(x)
		sum := 0.0
		for _, c := range v {
			sum += c
		}
		if sum <= 0 {
			continue
		}
		for i, c := range v {
			proba[i] += c / sum
		}
	}
	for i := range proba {
		proba[i] /= float64(len(m.Trees))
	}
	return proba, nil
}

// FPFlagFeatures and PhysicalFeatures split FeatureColumns by prefix,
// keeping model order.
func (m *Model) FPFlagFeatures() []string {
	var out []string
	for _, col := range m.FeatureColumns {
		if strings.HasPrefix(col, FPFlagPrefix) {
			out = append(out, col)
		}
	}
	return out
}

func (m *Model) PhysicalFeatures() []string {
	var out []string
	for _, col := range m.FeatureColumns {
		if !strings.HasPrefix(col, FPFlagPrefix) {
			out = append(out, col)
		}
	}
	return out
}
