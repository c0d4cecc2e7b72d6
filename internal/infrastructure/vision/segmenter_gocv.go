//go:build gocv
// +build gocv

package vision

import (
	"image"

	"gocv.io/x/gocv"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

// GoCVAvailable сообщает, собран ли пакет с OpenCV.
const GoCVAvailable = true

// GoCVSegmenter выполняет ту же цепочку водораздела средствами OpenCV.
type GoCVSegmenter struct {
	OpenIterations       int
	BackgroundIterations int
	ForegroundRatio      float64
	BoundaryColor        entity.RGB
}

var _ port.Segmenter = (*GoCVSegmenter)(nil)

// NewGoCVSegmenter создаёт сегментатор на OpenCV с параметрами по умолчанию.
func NewGoCVSegmenter() *GoCVSegmenter {
	return &GoCVSegmenter{
		OpenIterations:       2,
		BackgroundIterations: 3,
		ForegroundRatio:      0.7,
		BoundaryColor:        entity.ColorRed,
	}
}

// Segment возвращает копию изображения с закрашенной границей области.
func (s *GoCVSegmenter) Segment(img *entity.RawImage) (*entity.SegmentationResult, error) {
	if err := img.Validate(); err != nil {
		return nil, entity.NewError(entity.KindSegmentation, "cannot segment image", err)
	}
	if img.Channels != 3 {
		return nil, entity.NewError(entity.KindSegmentation, "segmenter expects 3 channels", nil)
	}

	out := img.Clone()
	mat, err := gocv.NewMatFromBytes(out.Height, out.Width, gocv.MatTypeCV8UC3, out.Pix)
	if err != nil {
		return nil, entity.NewError(entity.KindSegmentation, "failed to wrap image", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	defer mask.Close()
	t := gocv.Threshold(gray, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)
	result := &entity.SegmentationResult{Image: out, Threshold: uint8(t)}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	// Открытие: эрозии, затем столько же дилатаций.
	opened := mask.Clone()
	defer opened.Close()
	for i := 0; i < s.OpenIterations; i++ {
		gocv.Erode(opened, &opened, kernel)
	}
	for i := 0; i < s.OpenIterations; i++ {
		gocv.Dilate(opened, &opened, kernel)
	}

	if gocv.CountNonZero(opened) == opened.Rows()*opened.Cols() {
		result.Degenerate = true
		return result, nil
	}

	dist := gocv.NewMat()
	defer dist.Close()
	distLabels := gocv.NewMat()
	defer distLabels.Close()
	gocv.DistanceTransform(opened, &dist, &distLabels, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp)

	_, peak, _, _ := gocv.MinMaxLoc(dist)
	if peak <= 0 {
		result.Degenerate = true
		return result, nil
	}

	sureBg := opened.Clone()
	defer sureBg.Close()
	for i := 0; i < s.BackgroundIterations; i++ {
		gocv.Dilate(sureBg, &sureBg, kernel)
	}

	fgFloat := gocv.NewMat()
	defer fgFloat.Close()
	gocv.Threshold(dist, &fgFloat, float32(s.ForegroundRatio*float64(peak)), 255, gocv.ThresholdBinary)
	sureFg := gocv.NewMat()
	defer sureFg.Close()
	fgFloat.ConvertTo(&sureFg, gocv.MatTypeCV8U)

	unknown := gocv.NewMat()
	defer unknown.Close()
	gocv.Subtract(sureBg, sureFg, &unknown)

	markers := gocv.NewMat()
	defer markers.Close()
	result.Regions = gocv.ConnectedComponents(sureFg, &markers) - 1

	labels, err := markers.DataPtrInt32()
	if err != nil {
		return nil, entity.NewError(entity.KindSegmentation, "failed to read markers", err)
	}
	unknownPix := unknown.ToBytes()
	for i := range labels {
		if unknownPix[i] != 0 {
			labels[i] = 0
			continue
		}
		labels[i]++
	}

	gocv.Watershed(mat, &markers)

	labels, err = markers.DataPtrInt32()
	if err != nil {
		return nil, entity.NewError(entity.KindSegmentation, "failed to read markers", err)
	}
	for i, m := range labels {
		if m == labelBoundary {
			out.SetBGR(i%out.Width, i/out.Width, s.BoundaryColor)
			result.BoundaryPixels++
		}
	}
	return result, nil
}
