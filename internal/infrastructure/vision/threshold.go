package vision

// Коэффициенты BGR→Gray в формате с фиксированной точкой (сдвиг 14).
const (
	grayShift = 14
	grayR     = 4899
	grayG     = 9617
	grayB     = 1868
)

// grayscale переводит BGR-буфер в яркость: Y = 0.299R + 0.587G + 0.114B с округлением.
func grayscale(pix []uint8, channels int) []uint8 {
	out := make([]uint8, len(pix)/channels)
	for i, si := 0, 0; i < len(out); i, si = i+1, si+channels {
		b, g, r := int(pix[si]), int(pix[si+1]), int(pix[si+2])
		out[i] = uint8((r*grayR + g*grayG + b*grayB + 1<<(grayShift-1)) >> grayShift)
	}
	return out
}

// otsu выбирает порог, максимизирующий межклассовую дисперсию гистограммы.
// Классы, доля которых меньше float32 epsilon, не рассматриваются; при равенстве побеждает меньший порог.
func otsu(gray []uint8) uint8 {
	const eps = 1.1920928955078125e-07

	var hist [256]int
	for _, v := range gray {
		hist[v]++
	}
	scale := 1 / float64(len(gray))

	mu := 0.0
	for i, n := range hist {
		mu += float64(i) * float64(n)
	}
	mu *= scale

	var mu1, q1, maxSigma float64
	best := 0
	for i, n := range hist {
		p := float64(n) * scale
		mu1 *= q1
		q1 += p
		q2 := 1 - q1
		if min(q1, q2) < eps || max(q1, q2) > 1-eps {
			continue
		}
		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > maxSigma {
			maxSigma = sigma
			best = i
		}
	}
	return uint8(best)
}

// thresholdBinaryInv возвращает маску: 255 там, где яркость не выше t, иначе 0.
func thresholdBinaryInv(gray []uint8, t uint8) []uint8 {
	out := make([]uint8, len(gray))
	for i, v := range gray {
		if v <= t {
			out[i] = 255
		}
	}
	return out
}
