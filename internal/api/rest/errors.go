package rest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medvision/internal/domain/entity"
)

const (
	codeBadRequest      = "bad_request"
	codeProcessingError = "processing_error"
)

type errorHandler struct {
	log logrus.FieldLogger
}

// handle переводит ошибку конвейера в ответ. Ошибки клиента дают 400, остальные 500 с trace id в журнале.
func (h *errorHandler) handle(c *fiber.Ctx, err error, operation string) error {
	fields := logrus.Fields{
		"request_id": RequestIDFrom(c),
		"path":       c.Path(),
		"operation":  operation,
		"kind":       string(entity.KindOf(err)),
	}
	if entity.IsClientFault(err) {
		h.log.WithFields(fields).WithError(err).Warn("request rejected")
		return h.badRequest(c, err.Error())
	}

	traceID := uuid.NewString()
	fields["trace_id"] = traceID
	h.log.WithFields(fields).WithError(err).Error("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:     codeProcessingError,
		Detail:    err.Error(),
		RequestID: RequestIDFrom(c),
		TraceID:   traceID,
	})
}

func (h *errorHandler) badRequest(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:     codeBadRequest,
		Detail:    detail,
		RequestID: RequestIDFrom(c),
	})
}

// fiber вызывает его для ошибок, не обработанных маршрутами: 404, превышение лимита тела и т.п.
func (h *errorHandler) fallback(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := codeBadRequest
		if fe.Code >= fiber.StatusInternalServerError {
			code = codeProcessingError
		}
		return c.Status(fe.Code).JSON(ErrorResponse{
			Error:     code,
			Detail:    fe.Message,
			RequestID: RequestIDFrom(c),
		})
	}
	return h.handle(c, err, "unhandled")
}

// validationDetail собирает читаемую причину из ошибок validator.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "ImageRequest.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", field, fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
