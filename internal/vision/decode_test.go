package vision

import (
	"encoding/json"
	"image"
	"math/rand"
	"testing"
)

func mustParse(t *testing.T, body string) RawResponse {
	t.Helper()
	raw, err := ParseRawResponse([]byte(body))
	if err != nil {
		t.Fatalf("ParseRawResponse(%s): %v", body, err)
	}
	return raw
}

func TestDecodeClassifications_RanksByConfidence(t *testing.T) {
	raw := mustParse(t, `{"labels":["cat","dog"],"probabilities":[0.2,0.9]}`)

	got, err := DecodeClassifications(raw, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Classification{{"dog", 0.9}, {"cat", 0.2}}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDecodeClassifications_StableOnTies(t *testing.T) {
	raw := mustParse(t, `{"labels":["a","b","c","d"],"probabilities":[0.3,0.5,0.3,0.3]}`)

	got, err := DecodeClassifications(raw, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := []string{"b", "a", "c", "d"}
	for i, name := range order {
		if got[i].ClassName != name {
			t.Errorf("result[%d] = %q, want %q", i, got[i].ClassName, name)
		}
	}
}

func TestDecodeClassifications_Count(t *testing.T) {
	raw := mustParse(t, `{"labels":["a","b","c"],"probabilities":[0.1,0.7,0.2]}`)

	tests := []struct {
		name  string
		count int
		want  []string
	}{
		{"zero", 0, nil},
		{"one", 1, []string{"b"}},
		{"all", 3, []string{"b", "c", "a"}},
		{"clamped", 10, []string{"b", "c", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClassifications(raw, tt.count)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i].ClassName != tt.want[i] {
					t.Errorf("result[%d] = %q, want %q", i, got[i].ClassName, tt.want[i])
				}
			}
		})
	}
}

func TestDecodeClassifications_SortedProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		n := 1 + rng.Intn(20)
		labels := make([]any, n)
		probs := make([]any, n)
		for i := 0; i < n; i++ {
			labels[i] = string(rune('a' + i))
			probs[i] = float64(rng.Intn(5)) / 4
		}
		count := rng.Intn(n + 1)

		got, err := DecodeClassifications(RawResponse{KeyLabels: labels, KeyProbabilities: probs}, count)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != count {
			t.Fatalf("got %d results, want %d", len(got), count)
		}
		for i := 1; i < len(got); i++ {
			if got[i-1].Confidence < got[i].Confidence {
				t.Fatalf("results not descending at %d: %+v", i, got)
			}
			if got[i-1].Confidence == got[i].Confidence && got[i-1].ClassName > got[i].ClassName {
				t.Fatalf("tie at %d not in label order: %+v", i, got)
			}
		}
	}
}

func TestDecodeClassifications_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
		kind  ErrorKind
	}{
		{"missing labels", `{"probabilities":[0.1]}`, 1, KindMalformedResponse},
		{"missing probabilities", `{"labels":["a"]}`, 1, KindMalformedResponse},
		{"labels not a list", `{"labels":"a","probabilities":[0.1]}`, 1, KindMalformedResponse},
		{"probability not a number", `{"labels":["a"],"probabilities":["high"]}`, 1, KindMalformedResponse},
		{"negative count", `{"labels":["a"],"probabilities":[0.1]}`, -1, KindInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClassifications(mustParse(t, tt.body), tt.count)
			if !IsKind(err, tt.kind) {
				t.Errorf("expected %s error, got %v", tt.kind, err)
			}
		})
	}
}

func TestDecodeDetections_Example(t *testing.T) {
	raw := mustParse(t, `{"normalized_boxes":[[0.1,0.1,0.5,0.5]],"classes":[0],"scores":[0.99],"labels":["cat"]}`)

	got, err := DecodeDetections(raw, 100, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d detections, want 1", len(got))
	}
	d := got[0]
	if d.ClassName != "cat" || d.Confidence != 0.99 {
		t.Errorf("unexpected detection %+v", d)
	}
	if want := image.Rect(10, 20, 50, 100); d.BoundingBox != want {
		t.Errorf("BoundingBox = %v, want %v", d.BoundingBox, want)
	}
}

func TestDecodeDetections_ShortestListWins(t *testing.T) {
	raw := mustParse(t, `{
		"normalized_boxes":[[0,0,0.5,0.5],[0.5,0.5,1,1],[0.2,0.2,0.4,0.4]],
		"classes":[1.0,0.0],
		"scores":[0.9,0.8,0.7],
		"labels":["cat","dog"]
	}`)

	got, err := DecodeDetections(raw, 10, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d detections, want 2", len(got))
	}
	if got[0].ClassName != "dog" || got[1].ClassName != "cat" {
		t.Errorf("unexpected classes %q, %q", got[0].ClassName, got[1].ClassName)
	}
}

func TestDecodeDetections_NoFiltering(t *testing.T) {
	raw := mustParse(t, `{"normalized_boxes":[[0,0,1,1],[0,0,1,1]],"classes":[0,0],"scores":[0.01,0.0],"labels":["x"]}`)

	got, err := DecodeDetections(raw, 4, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d detections, want 2 (low scores must be kept)", len(got))
	}
}

func TestDecodeDetections_BoxesWithinImage(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for iter := 0; iter < 200; iter++ {
		width, height := 1+rng.Intn(4000), 1+rng.Intn(4000)
		box := []any{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		raw := RawResponse{
			KeyNormalizedBoxes: []any{box},
			KeyClasses:         []any{0.0},
			KeyScores:          []any{0.5},
			KeyLabels:          []any{"thing"},
		}

		got, err := DecodeDetections(raw, width, height)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r := got[0].BoundingBox
		if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > width || r.Max.Y > height {
			t.Fatalf("box %v outside %dx%d", r, width, height)
		}
		if r.Min.X > r.Max.X || r.Min.Y > r.Max.Y {
			t.Fatalf("box %v is not ordered", r)
		}
	}
}

func TestDecodeDetections_ClampsOutOfRangeCoordinates(t *testing.T) {
	raw := mustParse(t, `{"normalized_boxes":[[-0.2,1.5,0.5,0.25]],"classes":[0],"scores":[0.5],"labels":["x"]}`)

	got, err := DecodeDetections(raw, 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := image.Rect(0, 25, 50, 100); got[0].BoundingBox != want {
		t.Errorf("BoundingBox = %v, want %v", got[0].BoundingBox, want)
	}
}

func TestDecodeDetections_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing boxes", `{"classes":[0],"scores":[0.5],"labels":["x"]}`},
		{"missing classes", `{"normalized_boxes":[[0,0,1,1]],"scores":[0.5],"labels":["x"]}`},
		{"missing scores", `{"normalized_boxes":[[0,0,1,1]],"classes":[0],"labels":["x"]}`},
		{"missing labels", `{"normalized_boxes":[[0,0,1,1]],"classes":[0],"scores":[0.5]}`},
		{"class out of range", `{"normalized_boxes":[[0,0,1,1]],"classes":[3],"scores":[0.5],"labels":["x"]}`},
		{"negative class", `{"normalized_boxes":[[0,0,1,1]],"classes":[-1],"scores":[0.5],"labels":["x"]}`},
		{"huge class", `{"normalized_boxes":[[0.1,0.1,0.5,0.5]],"classes":[1e20],"scores":[0.9],"labels":["cat"]}`},
		{"fractional class", `{"normalized_boxes":[[0,0,1,1]],"classes":[0.5],"scores":[0.5],"labels":["x"]}`},
		{"short box", `{"normalized_boxes":[[0,0,1]],"classes":[0],"scores":[0.5],"labels":["x"]}`},
		{"non-numeric score", `{"normalized_boxes":[[0,0,1,1]],"classes":[0],"scores":["hi"],"labels":["x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDetections(mustParse(t, tt.body), 10, 10)
			if !IsKind(err, KindMalformedResponse) {
				t.Errorf("expected malformed response error, got %v", err)
			}
		})
	}
}

func TestParseRawResponse_Invalid(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2,3]`, `null`} {
		if _, err := ParseRawResponse([]byte(body)); !IsKind(err, KindMalformedResponse) {
			t.Errorf("ParseRawResponse(%s): expected malformed response error, got %v", body, err)
		}
	}
}

func TestDetectionMarshalJSON(t *testing.T) {
	d := Detection{ClassName: "cat", Confidence: 0.5, BoundingBox: image.Rect(1, 2, 3, 4)}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"class_name":"cat","confidence":0.5,"x_min":1,"y_min":2,"x_max":3,"y_max":4}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
