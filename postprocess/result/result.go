package result

import "github.com/swdee/go-ssdlite/box"

// DetectionResult is implemented by the per image results of a post processor
type DetectionResult interface {
	GetDetectResults() []DetectResult
}

// BoxRect are the pixel dimensions of the bounding box of a detected object
// in the source image
type BoxRect struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// DetectResult defines the attributes of a single object detected
type DetectResult struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object.  When the labels file has
	// no background entry the label name is at Class-1
	Class int
	// Box are the bounding box dimensions of the object location in the
	// source image.  It is zero when no image geometry was given
	Box BoxRect
	// Norm is the object location normalized to the model input
	Norm box.Corner
	// Probability is the confidence score of the object detected
	Probability float32
	// ID is a unique ID assigned to the detection result
	ID int64
}
