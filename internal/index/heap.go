package index

// scored pairs an arena position with its similarity to the query.
type scored struct {
	pos   int32
	score float64
}

// minHeap keeps the lowest-scored element on top, so the worst kept
// result can be evicted in O(log n).
type minHeap struct{ items []scored }

func (h *minHeap) len() int     { return len(h.items) }
func (h *minHeap) peek() scored { return h.items[0] }

func (h *minHeap) push(s scored) {
	h.items = append(h.items, s)
	i := len(h.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[parent].score <= h.items[i].score {
			break
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *minHeap) pop() scored {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	h.siftDown(0)
	return top
}

func (h *minHeap) siftDown(i int) {
	n := len(h.items)
	for {
		l, r := 2*i+1, 2*i+2
		small := i
		if l < n && h.items[l].score < h.items[small].score {
			small = l
		}
		if r < n && h.items[r].score < h.items[small].score {
			small = r
		}
		if small == i {
			return
		}
		h.items[i], h.items[small] = h.items[small], h.items[i]
		i = small
	}
}

// drainDescending empties the heap, returning elements best first.
func (h *minHeap) drainDescending() []scored {
	out := make([]scored, len(h.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = h.pop()
	}
	return out
}

// maxHeap keeps the highest-scored element on top; it drives the
// best-first expansion of the search frontier.
type maxHeap struct{ items []scored }

func (h *maxHeap) len() int { return len(h.items) }

func (h *maxHeap) push(s scored) {
	h.items = append(h.items, s)
	i := len(h.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[parent].score >= h.items[i].score {
			break
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *maxHeap) pop() scored {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]
	n := len(h.items)
	i := 0
	for {
		l, r := 2*i+1, 2*i+2
		big := i
		if l < n && h.items[l].score > h.items[big].score {
			big = l
		}
		if r < n && h.items[r].score > h.items[big].score {
			big = r
		}
		if big == i {
			return top
		}
		h.items[i], h.items[big] = h.items[big], h.items[i]
		i = big
	}
}
