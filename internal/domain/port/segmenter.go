package port

import "medvision/internal/domain/entity"

// Segmenter выделяет границу области интереса на цветном изображении
type Segmenter interface {
	// Segment возвращает копию изображения с подсвеченной границей; вход не изменяется
	Segment(img *entity.RawImage) (*entity.SegmentationResult, error)
}

// BoxRenderer наносит нормализованные рамки с подписями
type BoxRenderer interface {
	// DrawBoxes рисует рамки в заданном порядке на копии изображения
	DrawBoxes(img *entity.RawImage, boxes []entity.NormalizedBox, color entity.RGB, thickness int) (*entity.Annotation, error)
}
