package overlay

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

const (
	DefaultThickness = 2
	labelPadding     = 2
)

// Renderer рисует рамки с подписями поверх копии изображения.
type Renderer struct {
	Face font.Face
}

var _ port.BoxRenderer = (*Renderer)(nil)

// NewRenderer создаёт рендерер с растровым шрифтом 7×13.
func NewRenderer() *Renderer {
	return &Renderer{Face: basicfont.Face7x13}
}

// DrawBoxes рисует рамки в заданном порядке: поздние перекрывают ранние.
// thickness < 0 (entity.Filled) заливает рамку целиком. Вход не изменяется.
func (r *Renderer) DrawBoxes(img *entity.RawImage, boxes []entity.NormalizedBox, c entity.RGB, thickness int) (*entity.Annotation, error) {
	if err := img.Validate(); err != nil {
		return nil, entity.NewError(entity.KindRender, "cannot draw on image", err)
	}
	if img.Channels != 3 {
		return nil, entity.NewError(entity.KindRender, "renderer expects a 3-channel image", nil)
	}
	if err := entity.ValidateBoxes(boxes); err != nil {
		return nil, entity.NewError(entity.KindValidation, "", err)
	}
	if thickness == 0 {
		thickness = 1
	}

	out := img.Clone()
	rendered := make([]entity.RenderedBox, 0, len(boxes))
	for i, b := range boxes {
		col := c
		if b.Color != nil {
			col = *b.Color
		}
		p1, p2 := b.Corners(out.Width, out.Height)
		text := b.Text()

		r.drawRect(out, p1, p2, col, thickness)
		r.drawLabel(out, p1, text, col, thickness)

		rendered = append(rendered, entity.RenderedBox{
			Index: i,
			Label: b.Label,
			Text:  text,
			X1:    p1.X,
			Y1:    p1.Y,
			X2:    p2.X,
			Y2:    p2.Y,
		})
	}
	return &entity.Annotation{Image: out, Boxes: rendered}, nil
}

// drawRect рисует контур толщиной thickness, центрированный по линии рамки,
// либо заливает прямоугольник, включая обе угловые точки.
func (r *Renderer) drawRect(img *entity.RawImage, p1, p2 image.Point, c entity.RGB, thickness int) {
	if thickness < 0 {
		img.FillRect(image.Rect(p1.X, p1.Y, p2.X+1, p2.Y+1), c)
		return
	}
	lo := thickness / 2
	band := func(v int) (int, int) { return v - lo, v - lo + thickness }

	x1a, x1b := band(p1.X)
	x2a, x2b := band(p2.X)
	y1a, y1b := band(p1.Y)
	y2a, y2b := band(p2.Y)

	img.FillRect(image.Rect(x1a, y1a, x2b, y1b), c) // верх
	img.FillRect(image.Rect(x1a, y2a, x2b, y2b), c) // низ
	img.FillRect(image.Rect(x1a, y1a, x1b, y2b), c) // лево
	img.FillRect(image.Rect(x2a, y1a, x2b, y2b), c) // право
}

// drawLabel рисует подложку цвета рамки и текст контрастным цветом.
// Подложка ставится над рамкой, а если выходит за верх изображения, то внутрь.
func (r *Renderer) drawLabel(img *entity.RawImage, p1 image.Point, text string, c entity.RGB, thickness int) {
	rect := r.labelRect(img.Bounds(), p1, text, thickness)
	img.FillRect(rect, c)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c.Contrast().RGBA()),
		Face: r.Face,
		Dot:  fixed.P(rect.Min.X+labelPadding, rect.Min.Y+labelPadding+r.Face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func (r *Renderer) labelRect(bounds image.Rectangle, p1 image.Point, text string, thickness int) image.Rectangle {
	m := r.Face.Metrics()
	w := font.MeasureString(r.Face, text).Ceil() + 2*labelPadding
	h := m.Ascent.Ceil() + m.Descent.Ceil() + 2*labelPadding

	x, top := p1.X, p1.Y
	if thickness > 0 {
		x -= thickness / 2
		top -= thickness / 2
	}
	y := top - h
	if y < bounds.Min.Y {
		y = max(top, bounds.Min.Y)
	}
	if x+w > bounds.Max.X {
		x = bounds.Max.X - w
	}
	if x < bounds.Min.X {
		x = bounds.Min.X
	}
	return image.Rect(x, y, x+w, y+h)
}
