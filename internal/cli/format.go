package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteClassifications prints classifications as a table or JSON.
func WriteClassifications(w io.Writer, format string, results []vision.Classification) error {
	if format == OutputJSON {
		if results == nil {
			results = []vision.Classification{}
		}
		return WriteJSON(w, results)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCONFIDENCE")
	for _, c := range results {
		fmt.Fprintf(tw, "%s\t%s\n", c.ClassName, FormatConfidence(c.Confidence))
	}
	return tw.Flush()
}

// WriteDetections prints detections as a table or JSON.
func WriteDetections(w io.Writer, format string, results []vision.Detection) error {
	if format == OutputJSON {
		if results == nil {
			results = []vision.Detection{}
		}
		return WriteJSON(w, results)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCONFIDENCE\tBOX")
	for _, d := range results {
		fmt.Fprintf(tw, "%s\t%s\t(%d,%d)-(%d,%d)\n",
			d.ClassName, FormatConfidence(d.Confidence), d.XMin(), d.YMin(), d.XMax(), d.YMax())
	}
	return tw.Flush()
}

// FormatConfidence formats a [0,1] confidence as a percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c*100)
}
