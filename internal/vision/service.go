package vision

import (
	"context"
	"encoding/json"
	"image"
)

// Classification is a label ranked by how likely the image belongs to it.
type Classification struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
}

// Detection is a classified object with a bounding box in pixel coordinates.
// BoundingBox.Min is (x_min, y_min) and BoundingBox.Max is (x_max, y_max).
type Detection struct {
	ClassName   string          `json:"class_name"`
	Confidence  float64         `json:"confidence"`
	BoundingBox image.Rectangle `json:"-"`
}

// MarshalJSON flattens the bounding box into x_min/y_min/x_max/y_max.
func (d Detection) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ClassName  string  `json:"class_name"`
		Confidence float64 `json:"confidence"`
		XMin       int     `json:"x_min"`
		YMin       int     `json:"y_min"`
		XMax       int     `json:"x_max"`
		YMax       int     `json:"y_max"`
	}{d.ClassName, d.Confidence, d.XMin(), d.YMin(), d.XMax(), d.YMax()})
}

// XMin returns the left edge of the bounding box.
func (d Detection) XMin() int { return d.BoundingBox.Min.X }

// YMin returns the top edge of the bounding box.
func (d Detection) YMin() int { return d.BoundingBox.Min.Y }

// XMax returns the right edge of the bounding box.
func (d Detection) XMax() int { return d.BoundingBox.Max.X }

// YMax returns the bottom edge of the bounding box.
func (d Detection) YMax() int { return d.BoundingBox.Max.Y }

// PointCloudObject is a segmented object in 3D space. No implementation in
// this module produces one; it exists so the capability contract is complete.
type PointCloudObject struct {
	Label  string       `json:"label"`
	Points [][3]float64 `json:"points"`
}

// Service is the vision capability contract: four image operations, two
// operations that are part of the contract but unsupported, and Close.
type Service interface {
	GetClassifications(ctx context.Context, img Image, count int) ([]Classification, error)
	GetClassificationsFromCamera(ctx context.Context, cameraName string, count int) ([]Classification, error)
	GetDetections(ctx context.Context, img Image) ([]Detection, error)
	GetDetectionsFromCamera(ctx context.Context, cameraName string) ([]Detection, error)
	GetObjectPointClouds(ctx context.Context, cameraName string) ([]PointCloudObject, error)
	DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error)
	Close(ctx context.Context) error
}
