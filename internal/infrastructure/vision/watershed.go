package vision

const (
	labelBoundary int32 = -1
	labelInQueue  int32 = -2
	numQueues           = 256
)

// floodQueues: 256 FIFO-очередей пикселей, упорядоченных по приоритету.
type floodQueues struct {
	items [numQueues][]int
	heads [numQueues]int
}

func (q *floodQueues) push(priority, idx int) {
	q.items[priority] = append(q.items[priority], idx)
}

func (q *floodQueues) empty(priority int) bool {
	return q.heads[priority] == len(q.items[priority])
}

func (q *floodQueues) pop(priority int) int {
	idx := q.items[priority][q.heads[priority]]
	q.heads[priority]++
	if q.empty(priority) {
		q.items[priority] = q.items[priority][:0]
		q.heads[priority] = 0
	}
	return idx
}

// colorDiff: максимум модулей разностей по каналам двух BGR-пикселей.
func colorDiff(pix []uint8, a, b int) int {
	a, b = a*3, b*3
	d := absDiff(pix[a], pix[b])
	d = max(d, absDiff(pix[a+1], pix[b+1]))
	return max(d, absDiff(pix[a+2], pix[b+2]))
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// watershed заливает бассейны от маркеров по 3-канальному изображению.
// markers: >0 метки областей, 0 неизвестно. После работы пиксели на стыке
// областей и рамка изображения шириной в пиксель получают метку -1.
func watershed(pix []uint8, markers []int32, width, height int) {
	for x := 0; x < width; x++ {
		markers[x] = labelBoundary
		markers[(height-1)*width+x] = labelBoundary
	}

	var q floodQueues
	for y := 1; y < height-1; y++ {
		row := y * width
		markers[row] = labelBoundary
		markers[row+width-1] = labelBoundary

		for x := 1; x < width-1; x++ {
			i := row + x
			if markers[i] < 0 {
				markers[i] = 0
			}
			if markers[i] != 0 {
				continue
			}
			priority := numQueues
			for _, j := range [4]int{i - 1, i + 1, i - width, i + width} {
				if markers[j] > 0 {
					priority = min(priority, colorDiff(pix, i, j))
				}
			}
			if priority == numQueues {
				continue
			}
			q.push(priority, i)
			markers[i] = labelInQueue
		}
	}

	active := 0
	for active < numQueues && q.empty(active) {
		active++
	}
	if active == numQueues {
		return
	}

	for {
		if q.empty(active) {
			for active < numQueues && q.empty(active) {
				active++
			}
			if active == numQueues {
				return
			}
		}

		i := q.pop(active)
		neighbours := [4]int{i - 1, i + 1, i - width, i + width}

		var lab int32
		for _, j := range neighbours {
			t := markers[j]
			if t <= 0 {
				continue
			}
			if lab == 0 {
				lab = t
			} else if t != lab {
				lab = labelBoundary
			}
		}
		markers[i] = lab
		if lab == labelBoundary {
			continue
		}

		for _, j := range neighbours {
			if markers[j] != 0 {
				continue
			}
			priority := colorDiff(pix, i, j)
			q.push(priority, j)
			active = min(active, priority)
			markers[j] = labelInQueue
		}
	}
}
