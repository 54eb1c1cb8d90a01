package correlation

// recent is a bounded FIFO set of request IDs.
type recent struct {
	limit int
	order []string
	set   map[string]struct{}
}

func newRecent(limit int) *recent {
	if limit < 0 {
		limit = 0
	}
	return &recent{limit: limit, set: make(map[string]struct{}, limit)}
}

func (r *recent) add(id string) {
	if r.limit <= 0 {
		return
	}
	if _, ok := r.set[id]; ok {
		return
	}
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.set, oldest)
	}
	r.order = append(r.order, id)
	r.set[id] = struct{}{}
}

func (r *recent) has(id string) bool {
	_, ok := r.set[id]
	return ok
}

func (r *recent) reset() {
	r.order = nil
	r.set = make(map[string]struct{}, r.limit)
}
