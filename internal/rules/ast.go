package rules

// Node is one element of a parsed trigger. The set of node types is closed
// and none of them can reach anything but the raw selections.
type Node interface {
	node()
}

// Literal is a constant: nil, bool, int64, float64 or string.
type Literal struct {
	Value any
}

// RawRef is the bare selections mapping, as used in `"gpa" in raw`.
type RawRef struct{}

// FieldRef reads one selection. Strict references (raw["k"], raw.k) fail
// when the key was not submitted; lenient ones (raw.get("k")) yield Default.
type FieldRef struct {
	Key     Node
	Default Node
	Strict  bool
}

// List is a tuple or list display.
type List struct {
	Items []Node
}

// CompareOp is an equality or ordering operator.
type CompareOp string

const (
	OpEq CompareOp = "=="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

type Compare struct {
	Op          CompareOp
	Left, Right Node
}

// In is a membership test; Negated makes it `not in`.
type In struct {
	Item, Container Node
	Negated         bool
}

type And struct {
	Left, Right Node
}

type Or struct {
	Left, Right Node
}

type Not struct {
	Operand Node
}

func (Literal) node()  {}
func (RawRef) node()   {}
func (FieldRef) node() {}
func (List) node()     {}
func (Compare) node()  {}
func (In) node()       {}
func (And) node()      {}
func (Or) node()       {}
func (Not) node()      {}
