package entity

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// RawImage: растровый буфер height×width×channels из 8-битных отсчётов.
// Порядок каналов внутри сервиса всегда BGR (BGRA для 4 каналов, яркость для 1).
// Конвейер работает только с 3-канальными изображениями, остальные отсекает Input Guard.
type RawImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8 // строки подряд, stride = Width*Channels
}

// NewRawImage создаёт чёрное изображение заданного размера.
func NewRawImage(width, height, channels int) *RawImage {
	if width < 0 || height < 0 || channels < 0 {
		width, height, channels = 0, 0, 0
	}
	return &RawImage{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// Empty сообщает, что буфер не содержит ни одного пикселя.
func (m *RawImage) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Pix) == 0
}

// Stride возвращает длину строки в байтах.
func (m *RawImage) Stride() int {
	return m.Width * m.Channels
}

// Validate проверяет согласованность размеров и длины буфера.
func (m *RawImage) Validate() error {
	if m == nil {
		return errors.New("image is nil")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("image has non-positive dimensions %dx%d", m.Width, m.Height)
	}
	if m.Channels <= 0 {
		return fmt.Errorf("image has %d channels", m.Channels)
	}
	if len(m.Pix) != m.Width*m.Height*m.Channels {
		return fmt.Errorf("buffer length %d does not match %dx%dx%d", len(m.Pix), m.Height, m.Width, m.Channels)
	}
	return nil
}

// Clone возвращает независимую копию буфера.
func (m *RawImage) Clone() *RawImage {
	if m == nil {
		return nil
	}
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &RawImage{Width: m.Width, Height: m.Height, Channels: m.Channels, Pix: pix}
}

// Equal сравнивает изображения побайтно.
func (m *RawImage) Equal(other *RawImage) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Width != other.Width || m.Height != other.Height || m.Channels != other.Channels {
		return false
	}
	if len(m.Pix) != len(other.Pix) {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// PixOffset возвращает индекс первого байта пикселя (x, y).
func (m *RawImage) PixOffset(x, y int) int {
	return y*m.Stride() + x*m.Channels
}

// BGR возвращает пиксель (x, y) 3-канального изображения.
func (m *RawImage) BGR(x, y int) RGB {
	i := m.PixOffset(x, y)
	return RGB{B: m.Pix[i], G: m.Pix[i+1], R: m.Pix[i+2]}
}

// SetBGR записывает цвет в пиксель (x, y) 3-канального изображения.
func (m *RawImage) SetBGR(x, y int, c RGB) {
	i := m.PixOffset(x, y)
	m.Pix[i] = c.B
	m.Pix[i+1] = c.G
	m.Pix[i+2] = c.R
}

// FillRect закрашивает прямоугольник (правая и нижняя граница не включаются), обрезая его по краям изображения.
func (m *RawImage) FillRect(r image.Rectangle, c RGB) {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	if r.Empty() || m.Channels < 3 {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := m.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[i] = c.B
			m.Pix[i+1] = c.G
			m.Pix[i+2] = c.R
			i += m.Channels
		}
	}
}

// ColorModel, Bounds, At и Set позволяют передавать RawImage в image/draw,
// x/image/font и imaging без промежуточных копий.

func (m *RawImage) ColorModel() color.Model {
	if m.Channels == 1 {
		return color.GrayModel
	}
	if m.Channels == 4 {
		return color.NRGBAModel
	}
	return color.RGBAModel
}

func (m *RawImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

func (m *RawImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(m.Bounds())) {
		return color.RGBA{}
	}
	i := m.PixOffset(x, y)
	switch m.Channels {
	case 1:
		return color.Gray{Y: m.Pix[i]}
	case 4:
		return color.NRGBA{R: m.Pix[i+2], G: m.Pix[i+1], B: m.Pix[i], A: m.Pix[i+3]}
	default:
		return color.RGBA{R: m.Pix[i+2], G: m.Pix[i+1], B: m.Pix[i], A: 0xff}
	}
}

func (m *RawImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(m.Bounds())) {
		return
	}
	i := m.PixOffset(x, y)
	switch m.Channels {
	case 1:
		m.Pix[i] = color.GrayModel.Convert(c).(color.Gray).Y
	case 4:
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = n.B, n.G, n.R, n.A
	default:
		r, g, b, _ := c.RGBA()
		m.Pix[i], m.Pix[i+1], m.Pix[i+2] = uint8(b>>8), uint8(g>>8), uint8(r>>8)
	}
}

// RGB: цвет в привычной записи; в буфере хранится в порядке B, G, R.
type RGB struct {
	R, G, B uint8
}

var (
	ColorRed   = RGB{R: 0xff}
	ColorGreen = RGB{G: 0xff}
	ColorBlack = RGB{}
	ColorWhite = RGB{R: 0xff, G: 0xff, B: 0xff}
)

// RGBA переводит цвет в color.RGBA.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// Contrast подбирает чёрный или белый цвет текста поверх c.
func (c RGB) Contrast() RGB {
	luma := (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
	if luma > 127 {
		return ColorBlack
	}
	return ColorWhite
}

// String возвращает цвет в виде #rrggbb.
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText кодирует цвет как #rrggbb.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText разбирает цвет вида #rrggbb или rrggbb.
func (c *RGB) UnmarshalText(text []byte) error {
	parsed, err := ParseRGB(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseRGB разбирает цвет вида #rrggbb или rrggbb.
func ParseRGB(s string) (RGB, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	var v [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return RGB{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
		}
		v[i] = hi<<4 | lo
	}
	return RGB{R: v[0], G: v[1], B: v[2]}, nil
}

func hexNibble(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
