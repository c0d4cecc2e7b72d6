package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"medvision/internal/domain/entity"
)

var blue = entity.RGB{B: 0xff}

func overlapping() []entity.NormalizedBox {
	red := entity.ColorRed
	return []entity.NormalizedBox{
		{X: 0, Y: 0, Width: 0.5, Height: 0.5, Confidence: 0.9, Label: "a", Color: &red},
		{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5, Confidence: 0.75, Label: "b", Color: &blue},
	}
}

func TestRenderer_LaterBoxWinsWhenFilled(t *testing.T) {
	src := entity.NewRawImage(100, 100, 3)

	ann, err := NewRenderer().DrawBoxes(src, overlapping(), entity.ColorGreen, entity.Filled)
	require.NoError(t, err)
	require.Equal(t, blue, ann.Image.BGR(40, 40))
	require.Equal(t, entity.ColorRed, ann.Image.BGR(10, 40))
	require.Equal(t, blue, ann.Image.BGR(75, 75))
	require.Equal(t, entity.ColorBlack, ann.Image.BGR(90, 90))
}

func TestRenderer_LaterOutlineWinsAtCrossing(t *testing.T) {
	src := entity.NewRawImage(100, 100, 3)

	ann, err := NewRenderer().DrawBoxes(src, overlapping(), entity.ColorGreen, DefaultThickness)
	require.NoError(t, err)
	require.Equal(t, blue, ann.Image.BGR(50, 25))
	require.Equal(t, entity.ColorRed, ann.Image.BGR(50, 40))
	require.Equal(t, entity.ColorRed, ann.Image.BGR(49, 40))
	require.Equal(t, entity.ColorBlack, ann.Image.BGR(48, 40))
	require.Equal(t, entity.ColorBlack, ann.Image.BGR(40, 40))
}

func TestRenderer_DoesNotMutateInput(t *testing.T) {
	src := entity.NewRawImage(64, 64, 3)
	before := src.Clone()

	ann, err := NewRenderer().DrawBoxes(src, overlapping(), entity.ColorGreen, DefaultThickness)
	require.NoError(t, err)
	require.True(t, src.Equal(before))
	require.False(t, ann.Image.Equal(before))
}

func TestRenderer_Manifest(t *testing.T) {
	src := entity.NewRawImage(200, 100, 3)

	ann, err := NewRenderer().DrawBoxes(src, overlapping(), entity.ColorGreen, DefaultThickness)
	require.NoError(t, err)
	require.Equal(t, []entity.RenderedBox{
		{Index: 0, Label: "a", Text: "a 0.90", X1: 0, Y1: 0, X2: 100, Y2: 50},
		{Index: 1, Label: "b", Text: "b 0.75", X1: 50, Y1: 25, X2: 150, Y2: 75},
	}, ann.Boxes)
}

func TestRenderer_LabelAboveBox(t *testing.T) {
	src := entity.NewRawImage(100, 100, 3)
	boxes := []entity.NormalizedBox{{X: 0.2, Y: 0.5, Width: 0.3, Height: 0.3, Confidence: 0.5, Label: "fracture"}}

	r := NewRenderer()
	ann, err := r.DrawBoxes(src, boxes, entity.ColorGreen, DefaultThickness)
	require.NoError(t, err)

	require.Equal(t, entity.ColorGreen, ann.Image.BGR(20, 48))

	rect := r.labelRect(src.Bounds(), image.Pt(ann.Boxes[0].X1, ann.Boxes[0].Y1), boxes[0].Text(), DefaultThickness)
	require.Equal(t, 49, rect.Max.Y)
	ink := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if ann.Image.BGR(x, y) == entity.ColorBlack {
				ink++
			}
		}
	}
	require.Positive(t, ink)
}

func TestRenderer_LabelStaysInsideImage(t *testing.T) {
	r := NewRenderer()
	bounds := entity.NewRawImage(100, 100, 3).Bounds()

	top := r.labelRect(bounds, image.Pt(0, 0), "a 0.90", DefaultThickness)
	require.GreaterOrEqual(t, top.Min.Y, 0)
	require.GreaterOrEqual(t, top.Min.X, 0)

	right := r.labelRect(bounds, image.Pt(95, 50), "a 0.90", DefaultThickness)
	require.Equal(t, 100, right.Max.X)
}

func TestRenderer_Errors(t *testing.T) {
	r := NewRenderer()

	_, err := r.DrawBoxes(entity.NewRawImage(10, 10, 3), []entity.NormalizedBox{{X: 2, Width: 0.1, Height: 0.1, Label: "x"}}, entity.ColorGreen, 2)
	require.ErrorIs(t, err, entity.ErrValidation)

	_, err = r.DrawBoxes(entity.NewRawImage(10, 10, 1), nil, entity.ColorGreen, 2)
	require.ErrorIs(t, err, entity.ErrRender)
}
