package entity

import (
	"errors"
	"fmt"
	"time"
)

// Tensor: входной тензор классификатора формы (1, H, W, C) со значениями в [0,1].
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// NewTensor выделяет тензор формы (1, height, width, channels).
func NewTensor(height, width, channels int) *Tensor {
	return &Tensor{
		Shape: [4]int{1, height, width, channels},
		Data:  make([]float32, height*width*channels),
	}
}

// Len возвращает число элементов по форме.
func (t *Tensor) Len() int {
	return t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3]
}

// Nested раскладывает тензор в [batch][row][col][channel] для JSON-клиентов.
func (t *Tensor) Nested() [][][][]float32 {
	out := make([][][][]float32, t.Shape[0])
	i := 0
	for n := range out {
		rows := make([][][]float32, t.Shape[1])
		for y := range rows {
			cols := make([][]float32, t.Shape[2])
			for x := range cols {
				cols[x] = t.Data[i : i+t.Shape[3] : i+t.Shape[3]]
				i += t.Shape[3]
			}
			rows[y] = cols
		}
		out[n] = rows
	}
	return out
}

// Prediction хранит argmax классификации и его вероятность.
type Prediction struct {
	LabelIndex    int                `json:"label_index"`
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// NewPrediction выбирает класс с максимальной вероятностью.
// labels может быть короче вектора, тогда недостающие классы называются class_N.
func NewPrediction(probs []float32, labels []string) (Prediction, error) {
	if len(probs) == 0 {
		return Prediction{}, errors.New("empty probability vector")
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	named := make(map[string]float64, len(probs))
	for i, p := range probs {
		named[classLabel(labels, i)] = float64(p)
	}
	return Prediction{
		LabelIndex:    best,
		Label:         classLabel(labels, best),
		Confidence:    float64(probs[best]),
		Probabilities: named,
	}, nil
}

func classLabel(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("class_%d", i)
}

// SegmentationResult: изображение с подсвеченной границей области.
type SegmentationResult struct {
	Image          *RawImage
	Degenerate     bool  // передний план не выделяется, изображение не изменено
	Threshold      uint8 // порог Оцу
	Regions        int   // число маркеров переднего плана
	BoundaryPixels int
}

// RenderedBox описывает одну рамку манифеста отрисовки в пикселях вместе с подписью.
type RenderedBox struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Text  string `json:"text"`
	X1    int    `json:"x1"`
	Y1    int    `json:"y1"`
	X2    int    `json:"x2"`
	Y2    int    `json:"y2"`
}

// Annotation: новое изображение с рамками и манифест в порядке отрисовки.
type Annotation struct {
	Image *RawImage
	Boxes []RenderedBox
}

// TumorReport: ответ сценария «классифицировать и сегментировать».
type TumorReport struct {
	ProcessedImage string        `json:"processed_image"`
	TumorDetected  bool          `json:"tumor_detected"`
	Prediction     Prediction    `json:"prediction"`
	Degenerate     bool          `json:"degenerate"`
	Elapsed        time.Duration `json:"elapsed"`
}

// FractureReport: ответ сценария «нанести рамки».
type FractureReport struct {
	ProcessedImage string        `json:"processed_image"`
	Boxes          []RenderedBox `json:"boxes"`
	Elapsed        time.Duration `json:"elapsed"`
}
