package vision

// Веса фасочной (chamfer) маски 5×5 для евклидовой метрики в формате 16.16:
// шаг по горизонтали/вертикали 1, по диагонали 1.4, ходом коня 2.1969.
const (
	distShift = 16
	distHV    = 65536
	distDiag  = 91750
	distLong  = 143976
	distMax   = ^uint32(0) >> 2
	distScale = float32(1) / (1 << distShift)
)

// distanceTransform считает для каждого ненулевого пикселя маски расстояние
// до ближайшего нулевого. Пиксели за краем изображения фоном не считаются.
func distanceTransform(mask []uint8, width, height int) []float32 {
	const border = 2
	stride := width + 2*border
	tmp := make([]uint32, stride*(height+2*border))
	for i := range tmp {
		tmp[i] = distMax
	}
	at := func(x, y int) int { return (y+border)*stride + x + border }

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := at(x, y)
			if mask[y*width+x] == 0 {
				tmp[i] = 0
				continue
			}
			t := tmp[i-2*stride-1] + distLong
			t = min(t, tmp[i-2*stride+1]+distLong)
			t = min(t, tmp[i-stride-2]+distLong)
			t = min(t, tmp[i-stride-1]+distDiag)
			t = min(t, tmp[i-stride]+distHV)
			t = min(t, tmp[i-stride+1]+distDiag)
			t = min(t, tmp[i-stride+2]+distLong)
			t = min(t, tmp[i-1]+distHV)
			tmp[i] = t
		}
	}

	dist := make([]float32, width*height)
	for y := height - 1; y >= 0; y-- {
		for x := width - 1; x >= 0; x-- {
			i := at(x, y)
			t := tmp[i]
			if t > distHV {
				t = min(t, tmp[i+2*stride+1]+distLong)
				t = min(t, tmp[i+2*stride-1]+distLong)
				t = min(t, tmp[i+stride+2]+distLong)
				t = min(t, tmp[i+stride+1]+distDiag)
				t = min(t, tmp[i+stride]+distHV)
				t = min(t, tmp[i+stride-1]+distDiag)
				t = min(t, tmp[i+stride-2]+distLong)
				t = min(t, tmp[i+1]+distHV)
				tmp[i] = t
			}
			dist[y*width+x] = float32(t) * distScale
		}
	}
	return dist
}

// maxFloat возвращает максимум карты расстояний.
func maxFloat(values []float32) float32 {
	var m float32
	for _, v := range values {
		m = max(m, v)
	}
	return m
}

// thresholdAbove возвращает маску: 255 там, где значение строго больше t.
func thresholdAbove(values []float32, t float32) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		if v > t {
			out[i] = 255
		}
	}
	return out
}
