package vision

// erode применяет эрозию квадратным ядром 3×3 iterations раз.
// Пиксели за краем изображения не участвуют.
func erode(mask []uint8, width, height, iterations int) []uint8 {
	return morph(mask, width, height, iterations, func(a, b uint8) uint8 { return min(a, b) })
}

// dilate применяет дилатацию квадратным ядром 3×3 iterations раз.
func dilate(mask []uint8, width, height, iterations int) []uint8 {
	return morph(mask, width, height, iterations, func(a, b uint8) uint8 { return max(a, b) })
}

// opening: эрозия, затем дилатация с тем же числом итераций.
func opening(mask []uint8, width, height, iterations int) []uint8 {
	return dilate(erode(mask, width, height, iterations), width, height, iterations)
}

// morph сводит k итераций ядра 3×3 к одному проходу окном (2k+1)×(2k+1),
// разложенному на горизонтальный и вертикальный проходы.
func morph(src []uint8, width, height, iterations int, pick func(a, b uint8) uint8) []uint8 {
	out := make([]uint8, len(src))
	copy(out, src)
	if iterations <= 0 {
		return out
	}
	r := iterations

	rows := make([]uint8, len(src))
	for y := 0; y < height; y++ {
		row := src[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			v := row[x]
			for k := max(0, x-r); k <= min(width-1, x+r); k++ {
				v = pick(v, row[k])
			}
			rows[y*width+x] = v
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := rows[y*width+x]
			for k := max(0, y-r); k <= min(height-1, y+r); k++ {
				v = pick(v, rows[k*width+x])
			}
			out[y*width+x] = v
		}
	}
	return out
}
