package ir

// Method is the per-method IR state of spec.md §4.6: num_args (including
// implicit self as arg 0), a running temp counter (num_locals), the
// instruction stream, and any data labels the method's lowering
// allocated (e.g. one per string literal it contains).
type Method struct {
	Name         string
	NumArgs      int
	NumLocals    int
	Instructions []Instruction
	Labels       []Label
}

// NewMethod creates an empty Method named name with numArgs arguments
// (self counted as arg 0, so NumLocals starts there).
func NewMethod(name string, numArgs int) *Method {
	return &Method{Name: name, NumArgs: numArgs, NumLocals: numArgs}
}

// Emit appends i to the method's instruction stream.
func (m *Method) Emit(i Instruction) {
	m.Instructions = append(m.Instructions, i)
}

// NewTemp allocates a fresh temp slot, returning its number.
func (m *Method) NewTemp() int {
	t := m.NumLocals
	m.NumLocals++
	return t
}

// NewLabel allocates a fresh data label named name and records it in
// m.Labels. The emitters do not read m.Labels.
func (m *Method) NewLabel(name string) Label {
	l := Label{ID: len(m.Labels), Name: name}
	m.Labels = append(m.Labels, l)
	return l
}
