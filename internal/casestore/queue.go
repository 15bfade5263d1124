package casestore

// entry pairs a case with its heap position so merges can resift in place.
type entry struct {
	c     *Case
	index int
}

// caseHeap implements container/heap over pending cases: highest priority
// first, earliest creation first among equal priorities.
type caseHeap []*entry

func (h caseHeap) Len() int { return len(h) }

func (h caseHeap) Less(i, j int) bool {
	if h[i].c.Priority != h[j].c.Priority {
		return h[i].c.Priority > h[j].c.Priority
	}
	return h[i].c.seq < h[j].c.seq
}

func (h caseHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *caseHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *caseHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
