//go:build !gocv
// +build !gocv

package vision

import (
	"errors"

	"medvision/internal/domain/entity"
)

// GoCVAvailable сообщает, собран ли пакет с OpenCV.
const GoCVAvailable = false

// GoCVSegmenter без тега gocv доступен только как заглушка.
type GoCVSegmenter struct {
	OpenIterations       int
	BackgroundIterations int
	ForegroundRatio      float64
	BoundaryColor        entity.RGB
}

// NewGoCVSegmenter создаёт сегментатор-заглушку (без OpenCV).
func NewGoCVSegmenter() *GoCVSegmenter {
	return &GoCVSegmenter{
		OpenIterations:       2,
		BackgroundIterations: 3,
		ForegroundRatio:      0.7,
		BoundaryColor:        entity.ColorRed,
	}
}

// Segment возвращает ошибку, если сборка без тега gocv.
func (s *GoCVSegmenter) Segment(img *entity.RawImage) (*entity.SegmentationResult, error) {
	_ = img
	return nil, errors.New("gocv build tag is not enabled")
}
