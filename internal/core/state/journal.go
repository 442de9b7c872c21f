package state

// Journal collects undo actions for the operation in flight. Unwinding runs
// them in reverse order, restoring the exact pre-operation state.
type Journal struct {
	active bool
	undos  []func()
}

func newJournal() *Journal {
	return &Journal{}
}

func (j *Journal) append(undo func()) {
	j.undos = append(j.undos, undo)
}

func (j *Journal) unwind() {
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
	j.undos = j.undos[:0]
}

func (j *Journal) discard() {
	j.undos = j.undos[:0]
}
