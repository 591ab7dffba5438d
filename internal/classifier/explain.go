package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ExplainRequest is the body of POST /explain: the features sent to
// /predict and the prediction it returned.
type ExplainRequest struct {
	Features         Features      `json:"features"`
	PredictionResult ExplainResult `json:"prediction_result"`
}

type ExplainResult struct {
	Stage1 struct {
		Result     string  `json:"result"`
		Confidence float64 `json:"confidence"`
	} `json:"stage_1"`
	// Stage2 is kept raw so that an explicit null can be told apart from an
	// absent key; only null means stage 2 never ran.
	Stage2     json.RawMessage `json:"stage_2"`
	Prediction string          `json:"prediction"`
	Confidence float64         `json:"confidence"`
}

func (r ExplainResult) reachedStage2() bool {
	return !bytes.Equal(bytes.TrimSpace(r.Stage2), []byte("null"))
}

// ResultFromPrediction converts a Prediction into the shape Explain reads.
func ResultFromPrediction(p *Prediction) ExplainResult {
	var r ExplainResult
	r.Stage1.Result = p.Stage1.Result
	r.Stage1.Confidence = p.Stage1.Confidence
	r.Prediction = p.Prediction
	r.Confidence = p.Confidence
	if p.Stage2 == nil {
		r.Stage2 = json.RawMessage("null")
	} else {
		r.Stage2, _ = json.Marshal(p.Stage2)
	}
	return r
}

// Explain renders a deterministic plain-English account of a prediction,
// suitable for text to speech.
func Explain(req ExplainRequest) string {
	res := req.PredictionResult
	parts := []string{fmt.Sprintf(
		"The machine learning model has classified this candidate with %s confidence. Let me explain the reasoning.",
		percent(res.Confidence),
	)}

	if res.Stage1.Result == ResultFail {
		parts = append(parts, "In stage one, the signal quality screening detected characteristics "+
			"of a false positive. The signal shows patterns consistent with "+
			"instrumental artifacts, stellar eclipses, or centroid offsets. "+
			"This indicates the transit signal is not from a genuine planetary transit.")
	} else {
		parts = append(parts, fmt.Sprintf(
			"In stage one, the signal passed quality screening with %s confidence. "+
				"The transit signal appears clean with no major false positive flags.",
			percent(res.Stage1.Confidence),
		))
	}

	if res.reachedStage2() {
		parts = append(parts, fmt.Sprintf(
			"In stage two, the model analyzed the physical properties: "+
				"orbital period of %s days, planet radius of %s Earth radii, "+
				"and stellar temperature of %s Kelvin.",
			featureText(req.Features, "koi_period"),
			featureText(req.Features, "koi_prad"),
			featureText(req.Features, "koi_steff"),
		))

		switch res.Prediction {
		case PredictionExoplanet:
			parts = append(parts, fmt.Sprintf(
				"These physical parameters are highly consistent with confirmed "+
					"exoplanets in the Kepler dataset. The Random Forest classifier, "+
					"trained on over 9,000 observations, assigns a %s "+
					"probability that this is a genuine exoplanet candidate.",
				percent(res.Confidence),
			))
		case PredictionUncertain:
			parts = append(parts, fmt.Sprintf(
				"The physical parameters show mixed signals. The model is uncertain "+
					"with a %s probability. This case requires human expert "+
					"review or additional observations for confirmation.",
				percent(res.Confidence),
			))
		default:
			parts = append(parts, "The physical parameters do not match typical exoplanet characteristics. "+
				"This suggests the signal may be from a background eclipsing binary "+
				"or other astrophysical false positive.")
		}
	}

	if res.Prediction == PredictionExoplanet {
		parts = append(parts, "In conclusion, this is classified as an exoplanet candidate and "+
			"would be prioritized for follow-up observations.")
	} else {
		parts = append(parts, "In conclusion, this is classified as a false positive and would not "+
			"be prioritized for further study.")
	}

	return strings.Join(parts, " ")
}

func percent(p float64) string {
	return fmt.Sprintf("%.0f%%", p*100)
}

func featureText(f Features, key string) string {
	v, ok := f[key]
	if !ok {
		return "unknown"
	}
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	case nil:
		return "None"
	default:
		return fmt.Sprint(t)
	}
}
