package vision

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"sort"
)

// RawResponse is the endpoint's JSON body. Its keys depend on whether the
// deployed model is a classifier or a detector.
type RawResponse map[string]any

// Response keys produced by SageMaker JumpStart image models with
// Accept: application/json;verbose.
const (
	KeyLabels          = "labels"
	KeyProbabilities   = "probabilities"
	KeyNormalizedBoxes = "normalized_boxes"
	KeyClasses         = "classes"
	KeyScores          = "scores"
)

// ParseRawResponse decodes an endpoint body into a RawResponse. Anything
// other than a JSON object is a malformed response.
func ParseRawResponse(body []byte) (RawResponse, error) {
	var raw RawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, NewError(KindMalformedResponse, fmt.Sprintf("endpoint returned invalid JSON (body: %s)", preview), err)
	}
	if raw == nil {
		return nil, NewError(KindMalformedResponse, "endpoint returned a null body", nil)
	}
	return raw, nil
}

// DecodeClassifications pairs labels with probabilities, ranks them by
// descending confidence and keeps the first count entries. Ties keep the
// endpoint's label order. A count larger than the number of pairs is clamped.
func DecodeClassifications(raw RawResponse, count int) ([]Classification, error) {
	if count < 0 {
		return nil, NewError(KindInvalidArgument, fmt.Sprintf("count must be non-negative, got %d", count), nil)
	}

	labels, err := listField(raw, KeyLabels)
	if err != nil {
		return nil, err
	}
	probs, err := listField(raw, KeyProbabilities)
	if err != nil {
		return nil, err
	}

	n := min(len(labels), len(probs))
	ranked := make([]Classification, 0, n)
	for i := 0; i < n; i++ {
		p, ok := toFloat(probs[i])
		if !ok {
			return nil, malformed("%s[%d] is not a number: %v", KeyProbabilities, i, probs[i])
		}
		ranked = append(ranked, Classification{ClassName: toLabel(labels[i]), Confidence: p})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Confidence > ranked[b].Confidence
	})

	if count < len(ranked) {
		ranked = ranked[:count]
	}
	return ranked, nil
}

// DecodeDetections converts normalized boxes into pixel-space detections for
// an image of the given size. The result length is the shortest of boxes,
// classes and scores; surplus entries in the longer lists are ignored. No
// score filtering or suppression is applied.
func DecodeDetections(raw RawResponse, width, height int) ([]Detection, error) {
	if width < 0 || height < 0 {
		return nil, NewError(KindInvalidArgument, fmt.Sprintf("invalid image size %dx%d", width, height), nil)
	}

	boxes, err := listField(raw, KeyNormalizedBoxes)
	if err != nil {
		return nil, err
	}
	classes, err := listField(raw, KeyClasses)
	if err != nil {
		return nil, err
	}
	scores, err := listField(raw, KeyScores)
	if err != nil {
		return nil, err
	}
	labels, err := listField(raw, KeyLabels)
	if err != nil {
		return nil, err
	}

	n := min(len(boxes), len(classes), len(scores))
	detections := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		box, err := normalizedBox(boxes[i], i)
		if err != nil {
			return nil, err
		}

		classID, ok := toFloat(classes[i])
		if !ok || classID != math.Trunc(classID) {
			return nil, malformed("%s[%d] is not an integer class index: %v", KeyClasses, i, classes[i])
		}
		if classID < 0 || classID >= float64(len(labels)) {
			return nil, malformed("%s[%d] = %v is outside the %d known labels", KeyClasses, i, classes[i], len(labels))
		}
		idx := int(classID)

		score, ok := toFloat(scores[i])
		if !ok {
			return nil, malformed("%s[%d] is not a number: %v", KeyScores, i, scores[i])
		}

		detections = append(detections, Detection{
			ClassName:   toLabel(labels[idx]),
			Confidence:  score,
			BoundingBox: denormalize(box, width, height),
		})
	}
	return detections, nil
}

// normalizedBox reads an [x_min, y_min, x_max, y_max] tuple.
func normalizedBox(v any, i int) ([4]float64, error) {
	var box [4]float64
	items, ok := v.([]any)
	if !ok || len(items) < 4 {
		return box, malformed("%s[%d] is not a 4-element box: %v", KeyNormalizedBoxes, i, v)
	}
	for j := 0; j < 4; j++ {
		f, ok := toFloat(items[j])
		if !ok {
			return box, malformed("%s[%d][%d] is not a number: %v", KeyNormalizedBoxes, i, j, items[j])
		}
		box[j] = f
	}
	return box, nil
}

// denormalize scales a normalized box to pixels, truncating toward zero.
// Coordinates are clamped to [0,1] and ordered so that Min <= Max.
func denormalize(box [4]float64, width, height int) image.Rectangle {
	x0, x1 := ordered(clamp01(box[0]), clamp01(box[2]))
	y0, y1 := ordered(clamp01(box[1]), clamp01(box[3]))
	w, h := float64(width), float64(height)
	return image.Rectangle{
		Min: image.Point{X: int(x0 * w), Y: int(y0 * h)},
		Max: image.Point{X: int(x1 * w), Y: int(y1 * h)},
	}
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func ordered(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}

func listField(raw RawResponse, key string) ([]any, error) {
	v, ok := raw[key]
	if !ok {
		return nil, malformed("response is missing %q", key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, malformed("response field %q is not a list", key)
	}
	return list, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toLabel(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func malformed(format string, args ...any) error {
	return NewError(KindMalformedResponse, fmt.Sprintf(format, args...), nil)
}
