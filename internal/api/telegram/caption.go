package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"medvision/internal/domain/entity"
)

// parseBoxes разбирает подпись к снимку: по рамке на строку в виде «метка x y ширина высота уверенность».
// Метка может состоять из нескольких слов, числа берутся с конца строки.
func parseBoxes(caption string) ([]entity.NormalizedBox, error) {
	var boxes []entity.NormalizedBox
	for n, line := range strings.Split(caption, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 6 {
			return nil, fmt.Errorf("line %d: want label x y width height confidence", n+1)
		}
		nums := fields[len(fields)-5:]
		var v [5]float64
		for i, s := range nums {
			f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q is not a number", n+1, s)
			}
			v[i] = f
		}
		boxes = append(boxes, entity.NormalizedBox{
			Label:      strings.Join(fields[:len(fields)-5], " "),
			X:          v[0],
			Y:          v[1],
			Width:      v[2],
			Height:     v[3],
			Confidence: v[4],
		})
	}
	if len(boxes) == 0 {
		return nil, errors.New("caption lists no boxes")
	}
	return boxes, nil
}

func tumorCaption(r *entity.TumorReport) string {
	var b strings.Builder
	if r.TumorDetected {
		b.WriteString("🔴 Обнаружены признаки опухоли")
	} else {
		b.WriteString("🟢 Признаков опухоли не обнаружено")
	}
	fmt.Fprintf(&b, "\nКласс: %s, уверенность %.1f%%", r.Prediction.Label, r.Prediction.Confidence*100)
	if r.Degenerate {
		b.WriteString("\nГраница области не выделена: снимок однородный.")
	}
	fmt.Fprintf(&b, "\n⏱ %d мс", r.Elapsed.Milliseconds())
	return b.String()
}

func fractureCaption(r *entity.FractureReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🦴 Нанесено рамок: %d", len(r.Boxes))
	for _, box := range r.Boxes {
		fmt.Fprintf(&b, "\n%d. %s (%d,%d)–(%d,%d)", box.Index+1, box.Text, box.X1, box.Y1, box.X2, box.Y2)
	}
	return b.String()
}
