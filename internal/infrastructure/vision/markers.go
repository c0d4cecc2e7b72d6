package vision

// connectedComponents размечает 8-связные компоненты ненулевых пикселей.
// Фон получает метку 0, компоненты нумеруются с 1 в порядке обхода по строкам.
func connectedComponents(mask []uint8, width, height int) ([]int32, int) {
	labels := make([]int32, len(mask))
	stack := make([]int, 0, 64)
	next := int32(0)

	for start, v := range mask {
		if v == 0 || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%width, i/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					j := ny*width + nx
					if mask[j] != 0 && labels[j] == 0 {
						labels[j] = next
						stack = append(stack, j)
					}
				}
			}
		}
	}
	return labels, int(next)
}

// buildMarkers сдвигает метки компонент на единицу (1: фон) и обнуляет неизвестную область.
func buildMarkers(labels []int32, unknown []uint8) []int32 {
	markers := make([]int32, len(labels))
	for i, l := range labels {
		if unknown[i] != 0 {
			continue
		}
		markers[i] = l + 1
	}
	return markers
}

// subtractMask возвращает a \ b для бинарных масок.
func subtractMask(a, b []uint8) []uint8 {
	out := make([]uint8, len(a))
	for i := range a {
		if a[i] != 0 && b[i] == 0 {
			out[i] = 255
		}
	}
	return out
}
