package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decision thresholds.
const (
	SignalFailThreshold = 0.6 // stage 1: P(false positive)
	ExoplanetThreshold  = 0.7 // stage 2: P(exoplanet)
	UncertainThreshold  = 0.4
)

const (
	PredictionExoplanet     = "EXOPLANET"
	PredictionUncertain     = "UNCERTAIN"
	PredictionFalsePositive = "FALSE_POSITIVE"

	ResultPass = "PASS"
	ResultFail = "FAIL"
)

var ErrInvalidFeature = errors.New("invalid feature value")

type StageOne struct {
	Result        string  `json:"result"`
	SignalQuality string  `json:"signal_quality"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
}

type StageTwo struct {
	Result      string  `json:"result"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

type Prediction struct {
	Stage1     StageOne  `json:"stage_1"`
	Stage2     *StageTwo `json:"stage_2"`
	Prediction string    `json:"prediction"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
}

// Features is the raw user input keyed by column name. Values may be JSON
// numbers, numeric strings or booleans.
type Features map[string]any

// Predict runs the two-stage pipeline. Stage 1 looks only at the fpflag
// features with physical ones held at their medians; stage 2 runs only when
// stage 1 passes and holds every fpflag at 0.
func (m *Model) Predict(in Features) (*Prediction, error) {
	values, err := m.coerce(in)
	if err != nil {
		return nil, err
	}

	stage1 := make([]float64, len(m.FeatureColumns))
	stage2 := make([]float64, len(m.FeatureColumns))
	for i, col := range m.FeatureColumns {
		v, ok := values[col]
		if !ok {
			v = m.FeatureMedians[col]
		}
		if strings.HasPrefix(col, FPFlagPrefix) {
			stage1[i] = v
			stage2[i] = 0
		} else {
			stage1[i] = m.FeatureMedians[col]
			stage2[i] = v
		}
	}

	p1, err := m.PredictProba(stage1)
	if err != nil {
		return nil, err
	}
	fp := p1[ClassFalsePositive]

	if fp >= SignalFailThreshold {
		return &Prediction{
			Stage1: StageOne{
				Result:        ResultFail,
				SignalQuality: "Poor Signal Quality",
				Confidence:    fp,
				Explanation:   "Signal shows characteristics of false positives (stellar eclipse, centroid offset, etc.)",
			},
			Prediction: PredictionFalsePositive,
			Label:      "False Positive (Bad Signal)",
			Confidence: fp,
		}, nil
	}

	p2, err := m.PredictProba(stage2)
	if err != nil {
		return nil, err
	}
	planet := p2[ClassExoplanet]

	class, label := PredictionFalsePositive, "False Positive"
	switch {
	case planet >= ExoplanetThreshold:
		class, label = PredictionExoplanet, "Exoplanet Candidate"
	case planet >= UncertainThreshold:
		class, label = PredictionUncertain, "Uncertain - Needs Review"
	}

	return &Prediction{
		Stage1: StageOne{
			Result:        ResultPass,
			SignalQuality: "Clean Signal",
			Confidence:    1 - fp,
			Explanation:   "Signal passed quality screening - proceeding to physical analysis",
		},
		Stage2: &StageTwo{
			Result:      class,
			Label:       label,
			Confidence:  planet,
			Explanation: fmt.Sprintf("Random Forest model assigns %.1f%% probability of being an exoplanet", planet*100),
		},
		Prediction: class,
		Label:      label,
		Confidence: planet,
	}, nil
}

// coerce converts the provided features the model knows about. Unknown keys
// are ignored.
func (m *Model) coerce(in Features) (map[string]float64, error) {
	out := make(map[string]float64, len(in))
	for _, col := range m.FeatureColumns {
		raw, ok := in[col]
		if !ok {
			continue
		}
		v, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFeature, col, err)
		}
		out[col] = v
	}
	return out, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case nil:
		return 0, errors.New("null value")
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
