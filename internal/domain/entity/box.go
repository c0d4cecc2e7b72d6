package entity

import (
	"fmt"
	"image"
	"strings"
)

// Filled: толщина, при которой прямоугольник заливается целиком.
const Filled = -1

// NormalizedBox: рамка в долях ширины и высоты изображения.
type NormalizedBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Color      *RGB    `json:"color,omitempty"` // переопределяет общий цвет отрисовки
}

// Validate проверяет диапазоны координат и непустую метку.
func (b NormalizedBox) Validate() error {
	if !unit(b.X) || !unit(b.Y) {
		return fmt.Errorf("box origin (%g, %g) is outside [0,1]", b.X, b.Y)
	}
	if !(b.Width > 0 && b.Width <= 1) || !(b.Height > 0 && b.Height <= 1) {
		return fmt.Errorf("box size %gx%g must be in (0,1]", b.Width, b.Height)
	}
	if !unit(b.Confidence) {
		return fmt.Errorf("box confidence %g is outside [0,1]", b.Confidence)
	}
	if strings.TrimSpace(b.Label) == "" {
		return fmt.Errorf("box label is empty")
	}
	return nil
}

// Corners переводит рамку в пиксельные углы (x1, y1) и (x2, y2) для изображения width×height.
func (b NormalizedBox) Corners(width, height int) (image.Point, image.Point) {
	w, h := float64(width), float64(height)
	p1 := image.Pt(int(b.X*w), int(b.Y*h))
	p2 := image.Pt(int((b.X+b.Width)*w), int((b.Y+b.Height)*h))
	return p1, p2
}

// Text возвращает подпись рамки вида "label 0.87".
func (b NormalizedBox) Text() string {
	return fmt.Sprintf("%s %.2f", b.Label, b.Confidence)
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

// ValidateBoxes проверяет все рамки и сообщает номер первой ошибочной.
func ValidateBoxes(boxes []NormalizedBox) error {
	for i, b := range boxes {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bounding_boxes[%d]: %w", i, err)
		}
	}
	return nil
}
