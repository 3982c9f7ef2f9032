package vm

// Interval is the dynamic value built by Opcode Interval and tested
// by the `in` opcode, grounded on the original's VmInterval: boundary
// brackets decide whether each end is inclusive.
type Interval struct {
	Left, Right             Variable
	LeftInclusive           bool
	RightInclusive          bool
}

// Includes reports whether v falls within the interval. Both ends and
// v must be the same typed kind (Number or Date); anything else is an
// OpcodeErr, matching the VM's "unsupported type" rejection elsewhere.
func (iv *Interval) Includes(v Variable) (bool, error) {
	loCmp, ok := v.Compare(iv.Left)
	if !ok {
		return false, errOpcodeErr("In", "unsupported interval comparison type")
	}
	hiCmp, ok := v.Compare(iv.Right)
	if !ok {
		return false, errOpcodeErr("In", "unsupported interval comparison type")
	}

	lowOK := loCmp > 0 || (loCmp == 0 && iv.LeftInclusive)
	highOK := hiCmp < 0 || (hiCmp == 0 && iv.RightInclusive)
	return lowOK && highOK, nil
}
