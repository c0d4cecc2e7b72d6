package rest

import (
	"medvision/internal/domain/entity"
)

// BoxRequest: рамка в долях ширины и высоты изображения.
type BoxRequest struct {
	X          float64 `json:"x" validate:"gte=0,lte=1"`
	Y          float64 `json:"y" validate:"gte=0,lte=1"`
	Width      float64 `json:"width" validate:"gt=0,lte=1"`
	Height     float64 `json:"height" validate:"gt=0,lte=1"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Label      string  `json:"label" validate:"required"`
	Color      string  `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// ImageRequest: тело запроса обоих маршрутов.
type ImageRequest struct {
	ImageData     string       `json:"image_data" validate:"required"`
	BoundingBoxes []BoxRequest `json:"bounding_boxes,omitempty" validate:"omitempty,dive"`
	Color         string       `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Thickness     int          `json:"thickness,omitempty" validate:"gte=-1,lte=50"`
}

func (r ImageRequest) boxes() ([]entity.NormalizedBox, error) {
	out := make([]entity.NormalizedBox, 0, len(r.BoundingBoxes))
	for _, b := range r.BoundingBoxes {
		box := entity.NormalizedBox{
			X:          b.X,
			Y:          b.Y,
			Width:      b.Width,
			Height:     b.Height,
			Confidence: b.Confidence,
			Label:      b.Label,
		}
		if b.Color != "" {
			c, err := entity.ParseRGB(b.Color)
			if err != nil {
				return nil, err
			}
			box.Color = &c
		}
		out = append(out, box)
	}
	return out, nil
}

func (r ImageRequest) color() (*entity.RGB, error) {
	if r.Color == "" {
		return nil, nil
	}
	c, err := entity.ParseRGB(r.Color)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

type TumorResult struct {
	Label                  string             `json:"label"`
	LabelIndex             int                `json:"label_index"`
	Probabilities          map[string]float64 `json:"probabilities"`
	DegenerateSegmentation bool               `json:"degenerate_segmentation"`
	ProcessingTimeMs       int64              `json:"processing_time_ms"`
}

type TumorResponse struct {
	ProcessedImage  string      `json:"processed_image"`
	TumorDetected   bool        `json:"tumor_detected"`
	Confidence      float64     `json:"confidence"`
	DetectionResult TumorResult `json:"detection_result"`
}

type FractureResult struct {
	Boxes            []entity.RenderedBox `json:"boxes"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}

type FractureResponse struct {
	ProcessedImage  string         `json:"processed_image"`
	DetectionResult FractureResult `json:"detection_result"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

func newTumorResponse(r *entity.TumorReport) TumorResponse {
	return TumorResponse{
		ProcessedImage: r.ProcessedImage,
		TumorDetected:  r.TumorDetected,
		Confidence:     r.Prediction.Confidence,
		DetectionResult: TumorResult{
			Label:                  r.Prediction.Label,
			LabelIndex:             r.Prediction.LabelIndex,
			Probabilities:          r.Prediction.Probabilities,
			DegenerateSegmentation: r.Degenerate,
			ProcessingTimeMs:       r.Elapsed.Milliseconds(),
		},
	}
}

func newFractureResponse(r *entity.FractureReport) FractureResponse {
	return FractureResponse{
		ProcessedImage: r.ProcessedImage,
		DetectionResult: FractureResult{
			Boxes:            r.Boxes,
			ProcessingTimeMs: r.Elapsed.Milliseconds(),
		},
	}
}
