package vision

import (
	"errors"
	"fmt"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

// ErrIllegalTransition возвращается при вызове этапа сегментации не в своём порядке.
var ErrIllegalTransition = errors.New("illegal segmentation stage transition")

// Stage: этап конвейера сегментации.
type Stage int

const (
	StageLoaded Stage = iota
	StageDenoised
	StageSegmented
)

func (s Stage) String() string {
	switch s {
	case StageLoaded:
		return "loaded"
	case StageDenoised:
		return "denoised"
	case StageSegmented:
		return "segmented"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// WatershedSegmenter выделяет границу самой заметной области маркерным водоразделом.
type WatershedSegmenter struct {
	OpenIterations       int        // итерации эрозии и дилатации при удалении шума
	BackgroundIterations int        // итерации дилатации для уверенного фона
	ForegroundRatio      float64    // доля максимума карты расстояний для уверенного объекта
	BoundaryColor        entity.RGB // цвет границы
}

var _ port.Segmenter = (*WatershedSegmenter)(nil)

// NewWatershedSegmenter создаёт сегментатор с параметрами по умолчанию.
func NewWatershedSegmenter() *WatershedSegmenter {
	return &WatershedSegmenter{
		OpenIterations:       2,
		BackgroundIterations: 3,
		ForegroundRatio:      0.7,
		BoundaryColor:        entity.ColorRed,
	}
}

// Segment проводит изображение через все этапы. Вход не изменяется.
func (s *WatershedSegmenter) Segment(img *entity.RawImage) (*entity.SegmentationResult, error) {
	p, err := s.Load(img)
	if err != nil {
		return nil, err
	}
	if err := p.Denoise(); err != nil {
		return nil, err
	}
	return p.Segment()
}

// Load копирует изображение и строит бинарную маску по порогу Оцу.
func (s *WatershedSegmenter) Load(img *entity.RawImage) (*Pipeline, error) {
	if err := img.Validate(); err != nil {
		return nil, entity.NewError(entity.KindSegmentation, "cannot segment image", err)
	}
	if img.Channels != 3 {
		return nil, entity.NewError(entity.KindSegmentation,
			fmt.Sprintf("segmenter expects 3 channels, got %d", img.Channels), nil)
	}

	gray := grayscale(img.Pix, img.Channels)
	t := otsu(gray)
	return &Pipeline{
		cfg:       s,
		stage:     StageLoaded,
		img:       img.Clone(),
		threshold: t,
		mask:      thresholdBinaryInv(gray, t),
	}, nil
}

// Pipeline хранит промежуточные данные одной сегментации.
// Этапы выполняются строго в порядке Loaded → Denoised → Segmented.
type Pipeline struct {
	cfg       *WatershedSegmenter
	stage     Stage
	img       *entity.RawImage
	threshold uint8
	mask      []uint8
}

// Stage возвращает текущий этап.
func (p *Pipeline) Stage() Stage {
	return p.stage
}

// Denoise убирает мелкий шум морфологическим открытием.
func (p *Pipeline) Denoise() error {
	if p.stage != StageLoaded {
		return fmt.Errorf("denoise from %s: %w", p.stage, ErrIllegalTransition)
	}
	p.mask = opening(p.mask, p.img.Width, p.img.Height, p.cfg.OpenIterations)
	p.stage = StageDenoised
	return nil
}

// Segment строит маркеры, запускает водораздел и закрашивает границы.
// Если объект от фона не отделяется, изображение возвращается без изменений с Degenerate=true.
func (p *Pipeline) Segment() (*entity.SegmentationResult, error) {
	if p.stage != StageDenoised {
		return nil, fmt.Errorf("segment from %s: %w", p.stage, ErrIllegalTransition)
	}
	p.stage = StageSegmented

	w, h := p.img.Width, p.img.Height
	result := &entity.SegmentationResult{Image: p.img, Threshold: p.threshold}

	if !hasZero(p.mask) {
		result.Degenerate = true
		return result, nil
	}
	dist := distanceTransform(p.mask, w, h)
	peak := maxFloat(dist)
	if peak <= 0 {
		result.Degenerate = true
		return result, nil
	}

	sureBg := dilate(p.mask, w, h, p.cfg.BackgroundIterations)
	sureFg := thresholdAbove(dist, float32(p.cfg.ForegroundRatio*float64(peak)))
	unknown := subtractMask(sureBg, sureFg)
	labels, regions := connectedComponents(sureFg, w, h)
	markers := buildMarkers(labels, unknown)

	watershed(p.img.Pix, markers, w, h)

	for i, m := range markers {
		if m == labelBoundary {
			p.img.SetBGR(i%w, i/w, p.cfg.BoundaryColor)
			result.BoundaryPixels++
		}
	}
	result.Regions = regions
	p.mask = nil
	return result, nil
}

func hasZero(mask []uint8) bool {
	for _, v := range mask {
		if v == 0 {
			return true
		}
	}
	return false
}
