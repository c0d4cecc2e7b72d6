package preprocess

import (
	"github.com/disintegration/imaging"

	"medvision/internal/domain/entity"
	"medvision/internal/domain/port"
	"medvision/internal/infrastructure/codec"
)

// DefaultSize: сторона входа классификатора.
const DefaultSize = 240

// Preprocessor готовит тензор классификатора: билинейное масштабирование до Size×Size,
// деление на 255, порядок каналов BGR сохраняется.
type Preprocessor struct {
	Size int
}

var _ port.Preprocessor = (*Preprocessor)(nil)

// New создаёт Preprocessor; неположительный размер заменяется DefaultSize.
func New(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Preprocessor{Size: size}
}

// Prepare возвращает тензор формы (1, Size, Size, 3) со значениями в [0,1].
func (p *Preprocessor) Prepare(img *entity.RawImage) (*entity.Tensor, error) {
	if err := img.Validate(); err != nil {
		return nil, entity.NewError(entity.KindPreprocess, "cannot prepare image", err)
	}
	if img.Channels != 3 {
		return nil, entity.NewError(entity.KindPreprocess, "classifier expects a 3-channel image", nil)
	}

	resized := imaging.Resize(codec.ToRGBA(img), p.Size, p.Size, imaging.Linear)

	t := entity.NewTensor(p.Size, p.Size, 3)
	di := 0
	for y := 0; y < p.Size; y++ {
		si := resized.PixOffset(0, y)
		for x := 0; x < p.Size; x++ {
			t.Data[di] = float32(resized.Pix[si+2]) / 255
			t.Data[di+1] = float32(resized.Pix[si+1]) / 255
			t.Data[di+2] = float32(resized.Pix[si]) / 255
			si += 4
			di += 3
		}
	}
	return t, nil
}
