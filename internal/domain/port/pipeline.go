package port

import "medvision/internal/domain/entity"

// ImageCodec переводит base64-текст в растр и обратно
type ImageCodec interface {
	// Decode разбирает base64 PNG/JPEG в изображение BGR
	Decode(blob string) (*entity.RawImage, error)

	// EncodeJPEG кодирует изображение в JPEG с фиксированным качеством
	EncodeJPEG(img *entity.RawImage) ([]byte, error)
}

// InputGuard отсекает входные данные до тяжёлой обработки
type InputGuard interface {
	// EnsureSize проверяет оценку размера до декодирования
	EnsureSize(blob string) error

	// EnsureStructure проверяет, что изображение непустое и трёхканальное
	EnsureStructure(img *entity.RawImage) error
}

// Preprocessor готовит тензор для классификатора
type Preprocessor interface {
	Prepare(img *entity.RawImage) (*entity.Tensor, error)
}
