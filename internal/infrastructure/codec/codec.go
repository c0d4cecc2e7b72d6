package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
)

const (
	// DefaultQuality совпадает с качеством JPEG по умолчанию у OpenCV.
	DefaultQuality = 95
	// DefaultMaxPixels ограничивает размер растра до полного декодирования.
	DefaultMaxPixels = 40_000_000
)

// Codec переводит base64-текст в RawImage (BGR) и обратно в JPEG.
type Codec struct {
	quality   int
	maxPixels int
	formats   map[string]struct{}
}

var _ port.ImageCodec = (*Codec)(nil)

// New создаёт кодек с фиксированным качеством JPEG и списком разрешённых расширений.
func New(quality int, extensions []string, maxPixels int) *Codec {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	formats := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		formats[formatName(ext)] = struct{}{}
	}
	return &Codec{quality: quality, maxPixels: maxPixels, formats: formats}
}

// Quality возвращает качество JPEG, с которым кодируется результат.
func (c *Codec) Quality() int {
	return c.quality
}

// Decode разбирает base64 и растр PNG/JPEG в RawImage с порядком каналов BGR.
func (c *Codec) Decode(blob string) (*entity.RawImage, error) {
	data, err := DecodeBase64(blob)
	if err != nil {
		return nil, err
	}
	return c.DecodeRaster(data)
}

// DecodeRaster разбирает байты растра. Цветные растры приводятся к BGR без альфы,
// полутоновые остаются одноканальными, их отсекает Input Guard.
func (c *Codec) DecodeRaster(data []byte) (*entity.RawImage, error) {
	if len(data) == 0 {
		return nil, entity.NewError(entity.KindDecode, "image data is empty", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, entity.NewError(entity.KindDecode, "unrecognized image data", err)
	}
	if len(c.formats) > 0 {
		if _, ok := c.formats[format]; !ok {
			return nil, entity.NewError(entity.KindDecode, fmt.Sprintf("unsupported image format %q", format), nil)
		}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, entity.NewError(entity.KindDecode, fmt.Sprintf("image has invalid dimensions %dx%d", cfg.Width, cfg.Height), nil)
	}
	if cfg.Width*cfg.Height > c.maxPixels {
		return nil, entity.NewError(entity.KindSizeLimit,
			fmt.Sprintf("image is too large (%dx%d, limit %d pixels)", cfg.Width, cfg.Height, c.maxPixels), nil)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, entity.NewError(entity.KindDecode, "failed to decode "+format+" image", err)
	}
	return FromImage(img), nil
}

// Encode кодирует 3-канальное изображение в JPEG и возвращает base64-текст.
func (c *Codec) Encode(img *entity.RawImage) (string, error) {
	data, err := c.EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeJPEG кодирует 3-канальное изображение в JPEG с фиксированным качеством.
func (c *Codec) EncodeJPEG(img *entity.RawImage) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, entity.NewError(entity.KindEncode, "image is not encodable", err)
	}
	if img.Channels != 3 {
		return nil, entity.NewError(entity.KindEncode, fmt.Sprintf("image has %d channels, expected 3", img.Channels), nil)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, ToRGBA(img), imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, entity.NewError(entity.KindEncode, "failed to encode jpeg", err)
	}
	return buf.Bytes(), nil
}

// DecodeBase64 снимает необязательный префикс data URL и декодирует base64.
func DecodeBase64(blob string) ([]byte, error) {
	s := strings.TrimSpace(blob)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, entity.NewError(entity.KindDecode, "malformed data URL", nil)
		}
		s = s[comma+1:]
	}
	if strings.ContainsAny(s, " \t\r\n") {
		s = strings.Join(strings.Fields(s), "")
	}
	if s == "" {
		return nil, entity.NewError(entity.KindDecode, "image data is empty", nil)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, rawErr := base64.RawStdEncoding.DecodeString(s)
		if rawErr != nil {
			return nil, entity.NewError(entity.KindDecode, "invalid base64 image data", err)
		}
		data = raw
	}
	return data, nil
}

// FromImage переводит image.Image в RawImage: 1 канал для серых и палитровых, иначе BGR.
// Альфа-канал отбрасывается, цвет берётся без предумножения.
func FromImage(img image.Image) *entity.RawImage {
	b := img.Bounds()
	out := entity.NewRawImage(b.Dx(), b.Dy(), channelsOf(img))

	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				i := out.PixOffset(x, y)
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = bl, g, r
			}
		}
		return out
	case *image.Gray:
		for y := 0; y < out.Height; y++ {
			copy(out.Pix[y*out.Stride():(y+1)*out.Stride()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	case *image.RGBA:
		if src.Opaque() {
			rgbxToBGR(out, src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y))
			return out
		}
	case *image.NRGBA:
		rgbxToBGR(out, src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y))
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			i := out.PixOffset(x, y)
			if out.Channels == 1 {
				out.Pix[i] = color.GrayModel.Convert(c).(color.Gray).Y
				continue
			}
			n := color.NRGBAModel.Convert(c).(color.NRGBA)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = n.B, n.G, n.R
		}
	}
	return out
}

// rgbxToBGR копирует 4-байтовые пиксели R, G, B, X в 3-канальный буфер, отбрасывая четвёртый байт.
func rgbxToBGR(out *entity.RawImage, pix []uint8, stride, origin int) {
	for y := 0; y < out.Height; y++ {
		si := origin + y*stride
		di := y * out.Stride()
		for x := 0; x < out.Width; x++ {
			out.Pix[di], out.Pix[di+1], out.Pix[di+2] = pix[si+2], pix[si+1], pix[si]
			si += 4
			di += 3
		}
	}
}

// ToRGBA переводит 3-канальный BGR-буфер в *image.RGBA для кодировщиков.
func ToRGBA(img *entity.RawImage) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	si, di := 0, 0
	for n := img.Width * img.Height; n > 0; n-- {
		out.Pix[di] = img.Pix[si+2]
		out.Pix[di+1] = img.Pix[si+1]
		out.Pix[di+2] = img.Pix[si]
		out.Pix[di+3] = 0xff
		si += img.Channels
		di += 4
	}
	return out
}

// channelsOf: полутоновые и палитровые растры остаются одноканальными и отсекаются Input Guard,
// остальные (с альфой или без, CMYK) приводятся к BGR.
func channelsOf(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Paletted:
		return 1
	}
	return 3
}

func formatName(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}
