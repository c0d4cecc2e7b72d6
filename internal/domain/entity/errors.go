package entity

import "errors"

// ErrorKind: категория ошибки конвейера.
type ErrorKind string

const (
	KindDecode       ErrorKind = "decode"
	KindStructure    ErrorKind = "structure"
	KindSizeLimit    ErrorKind = "size_limit"
	KindValidation   ErrorKind = "validation"
	KindPreprocess   ErrorKind = "preprocess"
	KindEncode       ErrorKind = "encode"
	KindInference    ErrorKind = "inference"
	KindSegmentation ErrorKind = "segmentation"
	KindRender       ErrorKind = "render"
)

// ClientFault сообщает, что ошибка вызвана входными данными клиента.
func (k ErrorKind) ClientFault() bool {
	switch k {
	case KindDecode, KindStructure, KindSizeLimit, KindValidation:
		return true
	}
	return false
}

// PipelineError: ошибка этапа конвейера с читаемой причиной.
type PipelineError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Err != nil && e.Reason == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	if e.Reason == "" {
		return string(e.Kind) + " error"
	}
	return e.Reason
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по категории, поэтому errors.Is(err, ErrDecode) срабатывает для любой ошибки декодирования.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NewError создаёт ошибку категории kind.
func NewError(kind ErrorKind, reason string, err error) error {
	return &PipelineError{Kind: kind, Reason: reason, Err: err}
}

var (
	ErrDecode       = &PipelineError{Kind: KindDecode}
	ErrStructure    = &PipelineError{Kind: KindStructure}
	ErrSizeLimit    = &PipelineError{Kind: KindSizeLimit}
	ErrValidation   = &PipelineError{Kind: KindValidation}
	ErrPreprocess   = &PipelineError{Kind: KindPreprocess}
	ErrEncode       = &PipelineError{Kind: KindEncode}
	ErrInference    = &PipelineError{Kind: KindInference}
	ErrSegmentation = &PipelineError{Kind: KindSegmentation}
	ErrRender       = &PipelineError{Kind: KindRender}
)

// KindOf возвращает категорию ошибки; для посторонних ошибок пустую строку.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsClientFault сообщает, нужно ли отвечать клиенту bad_request.
func IsClientFault(err error) bool {
	return KindOf(err).ClientFault()
}
