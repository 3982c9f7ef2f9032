package vm

import (
	cryptorand "crypto/rand"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// builtinFunc is a closed-registry entry: the callable plus its
// accepted arity range (MaxArgs -1 means unbounded). CallFunction and
// CallMethod share this registry; for a method call the compiler pushes
// the receiver ahead of the explicit arguments and counts it in
// ArgCount, so it reaches the builtin as args[0],
// since the original's separate FunctionRegistry/MethodRegistry differ
// only in whether the first argument came from a dot-receiver or an
// explicit call argument — the callable itself doesn't care.
type builtinFunc struct {
	MinArgs int
	MaxArgs int
	Call    func(args []Variable) (Variable, error)
}

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"len":       {1, 1, builtinLen},
		"contains":  {2, 2, builtinContains},
		"flatten":   {1, 1, builtinFlatten},
		"upper":     {1, 1, builtinUpper},
		"lower":     {1, 1, builtinLower},
		"trim":      {1, 1, builtinTrim},
		"startsWith": {2, 2, builtinStartsWith},
		"endsWith":  {2, 2, builtinEndsWith},
		"matches":   {2, 2, builtinMatches},
		"extract":   {2, 2, builtinExtract},
		"fuzzyMatch": {2, 2, builtinFuzzyMatch},
		"split":     {2, 2, builtinSplit},
		"abs":       {1, 1, builtinAbs},
		"sum":       {1, 1, builtinSum},
		"avg":       {1, 1, builtinAvg},
		"min":       {1, -1, builtinMin},
		"max":       {1, -1, builtinMax},
		"rand":      {0, 0, builtinRand},
		"median":    {1, 1, builtinMedian},
		"mode":      {1, 1, builtinMode},
		"floor":     {1, 1, builtinFloor},
		"ceil":      {1, 1, builtinCeil},
		"round":     {1, 2, builtinRound},
		"trunc":     {1, 2, builtinTrunc},
		"isNumeric": {1, 1, builtinIsNumeric},
		"string":    {1, 1, builtinString},
		"number":    {1, 1, builtinNumber},
		"bool":      {1, 1, builtinBool},
		"type":      {1, 1, builtinType},
		"keys":      {1, 1, builtinKeys},
		"values":    {1, 1, builtinValues},
		"d":         {1, 1, builtinDate},
	}
}

func lookupBuiltin(name string) (builtinFunc, bool) {
	b, ok := builtins[name]
	return b, ok
}

// LookupSignature exposes a builtin's arity range to the compiler so
// function calls can be validated at compile time rather than at run
// time. MaxArgs of -1 means unbounded.
func LookupSignature(name string) (minArgs, maxArgs int, ok bool) {
	b, found := builtins[name]
	if !found {
		return 0, 0, false
	}
	return b.MinArgs, b.MaxArgs, true
}

func builtinLen(args []Variable) (Variable, error) {
	switch args[0].Kind {
	case KindArray:
		return NewNumber(decimal.NewFromInt(int64(len(args[0].Array)))), nil
	case KindString:
		return NewNumber(decimal.NewFromInt(int64(len([]rune(args[0].Str))))), nil
	default:
		return Variable{}, errOpcodeErr("len", "unsupported type")
	}
}

func builtinContains(args []Variable) (Variable, error) {
	container, needle := args[0], args[1]
	switch container.Kind {
	case KindArray:
		for _, v := range container.Array {
			if v.Equal(needle) {
				return NewBool(true), nil
			}
		}
		return NewBool(false), nil
	case KindString:
		if needle.Kind != KindString {
			return Variable{}, errOpcodeErr("contains", "unsupported type")
		}
		return NewBool(strings.Contains(container.Str, needle.Str)), nil
	case KindObject:
		if needle.Kind != KindString {
			return Variable{}, errOpcodeErr("contains", "unsupported type")
		}
		_, ok := container.Object[needle.Str]
		return NewBool(ok), nil
	default:
		return Variable{}, errOpcodeErr("contains", "unsupported type")
	}
}

func builtinFlatten(args []Variable) (Variable, error) {
	if args[0].Kind != KindArray {
		return Variable{}, errOpcodeErr("flatten", "unsupported type")
	}
	return NewArray(flattenOne(args[0].Array)), nil
}

func flattenOne(arr []Variable) []Variable {
	out := make([]Variable, 0, len(arr))
	for _, v := range arr {
		if v.Kind == KindArray {
			out = append(out, v.Array...)
		} else {
			out = append(out, v)
		}
	}
	return out
}

func builtinUpper(args []Variable) (Variable, error) {
	if args[0].Kind != KindString {
		return Variable{}, errOpcodeErr("upper", "unsupported type")
	}
	return NewString(strings.ToUpper(args[0].Str)), nil
}

func builtinLower(args []Variable) (Variable, error) {
	if args[0].Kind != KindString {
		return Variable{}, errOpcodeErr("lower", "unsupported type")
	}
	return NewString(strings.ToLower(args[0].Str)), nil
}

func builtinTrim(args []Variable) (Variable, error) {
	if args[0].Kind != KindString {
		return Variable{}, errOpcodeErr("trim", "unsupported type")
	}
	return NewString(strings.TrimSpace(args[0].Str)), nil
}

func builtinStartsWith(args []Variable) (Variable, error) {
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Variable{}, errOpcodeErr("startsWith", "unsupported type")
	}
	return NewBool(strings.HasPrefix(args[0].Str, args[1].Str)), nil
}

func builtinEndsWith(args []Variable) (Variable, error) {
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Variable{}, errOpcodeErr("endsWith", "unsupported type")
	}
	return NewBool(strings.HasSuffix(args[0].Str, args[1].Str)), nil
}

func builtinMatches(args []Variable) (Variable, error) {
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Variable{}, errOpcodeErr("matches", "unsupported type")
	}
	re, err := regexp.Compile(args[1].Str)
	if err != nil {
		return Variable{}, errOpcodeErr("matches", "invalid pattern: "+err.Error())
	}
	return NewBool(re.MatchString(args[0].Str)), nil
}

func builtinExtract(args []Variable) (Variable, error) {
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Variable{}, errOpcodeErr("extract", "unsupported type")
	}
	re, err := regexp.Compile(args[1].Str)
	if err != nil {
		return Variable{}, errOpcodeErr("extract", "invalid pattern: "+err.Error())
	}
	m := re.FindStringSubmatch(args[0].Str)
	if m == nil {
		return Null(), nil
	}
	if len(m) > 1 {
		return NewString(m[1]), nil
	}
	return NewString(m[0]), nil
}

// builtinFuzzyMatch returns a normalized similarity in [0,1] via plain
// Levenshtein distance. Deliberately not shared with pkg/conflict's
// Damerau-Levenshtein merge heuristic — the VM is an independent
// service and must not import the collaboration packages.
func builtinFuzzyMatch(args []Variable) (Variable, error) {
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Variable{}, errOpcodeErr("fuzzyMatch", "unsupported type")
	}
	a, b := []rune(args[0].Str), []rune(args[1].Str)
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return NewNumber(decimal.NewFromInt(1)), nil
	}
	similarity := 1.0 - float64(dist)/float64(maxLen)
	return NewNumber(decimal.NewFromFloat(similarity)), nil
}

func levenshtein(a, b []rune) int {
	rows, cols := len(a)+1, len(b)+1
	prev := make([]int, cols)
	curr := make([]int, cols)
	for j := 0; j < cols; j++ {
		prev[j] = j
	}
	for i := 1; i < rows; i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func builtinSplit(args []Variable) (Variable, error) {
	if args[0].Kind != KindString || args[1].Kind != KindString {
		return Variable{}, errOpcodeErr("split", "unsupported type")
	}
	parts := strings.Split(args[0].Str, args[1].Str)
	out := make([]Variable, len(parts))
	for i, p := range parts {
		out[i] = NewString(p)
	}
	return NewArray(out), nil
}

func builtinAbs(args []Variable) (Variable, error) {
	if args[0].Kind != KindNumber {
		return Variable{}, errOpcodeErr("abs", "unsupported type")
	}
	return NewNumber(args[0].Number.Abs()), nil
}

func numericArray(opcode string, v Variable) ([]decimal.Decimal, error) {
	if v.Kind != KindArray {
		return nil, errOpcodeErr(opcode, "expected an array")
	}
	out := make([]decimal.Decimal, 0, len(v.Array))
	for _, e := range v.Array {
		if e.Kind != KindNumber {
			return nil, errOpcodeErr(opcode, "array contains a non-number element")
		}
		out = append(out, e.Number)
	}
	return out, nil
}

func builtinSum(args []Variable) (Variable, error) {
	nums, err := numericArray("sum", args[0])
	if err != nil {
		return Variable{}, err
	}
	total := decimal.Zero
	for _, n := range nums {
		total = total.Add(n)
	}
	return NewNumber(total), nil
}

func builtinAvg(args []Variable) (Variable, error) {
	nums, err := numericArray("avg", args[0])
	if err != nil {
		return Variable{}, err
	}
	if len(nums) == 0 {
		return Variable{}, errOpcodeErr("avg", "empty array")
	}
	total := decimal.Zero
	for _, n := range nums {
		total = total.Add(n)
	}
	return NewNumber(total.Div(decimal.NewFromInt(int64(len(nums))))), nil
}

func builtinMin(args []Variable) (Variable, error) {
	nums, err := collectNumbers("min", args)
	if err != nil {
		return Variable{}, err
	}
	result := nums[0]
	for _, n := range nums[1:] {
		if n.Cmp(result) < 0 {
			result = n
		}
	}
	return NewNumber(result), nil
}

func builtinMax(args []Variable) (Variable, error) {
	nums, err := collectNumbers("max", args)
	if err != nil {
		return Variable{}, err
	}
	result := nums[0]
	for _, n := range nums[1:] {
		if n.Cmp(result) > 0 {
			result = n
		}
	}
	return NewNumber(result), nil
}

// collectNumbers accepts either a single array argument or a variadic
// list of number arguments, matching how min/max read in expression
// source (`min(arr)` or `min(a, b, c)`).
func collectNumbers(opcode string, args []Variable) ([]decimal.Decimal, error) {
	if len(args) == 1 && args[0].Kind == KindArray {
		return numericArray(opcode, args[0])
	}
	out := make([]decimal.Decimal, 0, len(args))
	for _, a := range args {
		if a.Kind != KindNumber {
			return nil, errOpcodeErr(opcode, "unsupported type")
		}
		out = append(out, a.Number)
	}
	if len(out) == 0 {
		return nil, errOpcodeErr(opcode, "no arguments")
	}
	return out, nil
}

func builtinRand(args []Variable) (Variable, error) {
	n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(1<<53))
	if err != nil {
		return Variable{}, errOpcodeErr("rand", "entropy source failed")
	}
	f := float64(n.Int64()) / float64(int64(1)<<53)
	return NewNumber(decimal.NewFromFloat(f)), nil
}

func builtinMedian(args []Variable) (Variable, error) {
	nums, err := numericArray("median", args[0])
	if err != nil {
		return Variable{}, err
	}
	if len(nums) == 0 {
		return Variable{}, errOpcodeErr("median", "empty array")
	}
	sorted := append([]decimal.Decimal(nil), nums...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return NewNumber(sorted[mid]), nil
	}
	return NewNumber(sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))), nil
}

func builtinMode(args []Variable) (Variable, error) {
	nums, err := numericArray("mode", args[0])
	if err != nil {
		return Variable{}, err
	}
	if len(nums) == 0 {
		return Variable{}, errOpcodeErr("mode", "empty array")
	}
	counts := make(map[string]int)
	best := nums[0]
	bestCount := 0
	for _, n := range nums {
		key := n.String()
		counts[key]++
		if counts[key] > bestCount {
			bestCount = counts[key]
			best = n
		}
	}
	return NewNumber(best), nil
}

func builtinFloor(args []Variable) (Variable, error) {
	if args[0].Kind != KindNumber {
		return Variable{}, errOpcodeErr("floor", "unsupported type")
	}
	return NewNumber(args[0].Number.Floor()), nil
}

func builtinCeil(args []Variable) (Variable, error) {
	if args[0].Kind != KindNumber {
		return Variable{}, errOpcodeErr("ceil", "unsupported type")
	}
	return NewNumber(args[0].Number.Ceil()), nil
}

func places(args []Variable, opcode string) (int32, error) {
	if len(args) < 2 {
		return 0, nil
	}
	if args[1].Kind != KindNumber {
		return 0, errOpcodeErr(opcode, "unsupported type")
	}
	return int32(args[1].Number.IntPart()), nil
}

// builtinRound rounds half-away-from-zero, matching the spec's
// rounding convention (shopspring/decimal's Round is banker's
// rounding, so the half-away-from-zero case is handled explicitly).
func builtinRound(args []Variable) (Variable, error) {
	if args[0].Kind != KindNumber {
		return Variable{}, errOpcodeErr("round", "unsupported type")
	}
	p, err := places(args, "round")
	if err != nil {
		return Variable{}, err
	}
	n := args[0].Number
	scale := decimal.New(1, p)
	scaled := n.Mul(scale)
	var rounded decimal.Decimal
	if scaled.Sign() >= 0 {
		rounded = scaled.Add(decimal.NewFromFloat(0.5)).Floor()
	} else {
		rounded = scaled.Sub(decimal.NewFromFloat(0.5)).Ceil()
	}
	return NewNumber(rounded.Div(scale)), nil
}

func builtinTrunc(args []Variable) (Variable, error) {
	if args[0].Kind != KindNumber {
		return Variable{}, errOpcodeErr("trunc", "unsupported type")
	}
	p, err := places(args, "trunc")
	if err != nil {
		return Variable{}, err
	}
	return NewNumber(args[0].Number.Truncate(p)), nil
}

func builtinIsNumeric(args []Variable) (Variable, error) {
	switch args[0].Kind {
	case KindNumber:
		return NewBool(true), nil
	case KindString:
		_, err := decimal.NewFromString(args[0].Str)
		return NewBool(err == nil), nil
	default:
		return NewBool(false), nil
	}
}

func builtinString(args []Variable) (Variable, error) {
	return NewString(args[0].String()), nil
}

func builtinNumber(args []Variable) (Variable, error) {
	switch args[0].Kind {
	case KindNumber:
		return args[0], nil
	case KindString:
		d, err := decimal.NewFromString(strings.TrimSpace(args[0].Str))
		if err != nil {
			return Variable{}, errOpcodeErr("number", "cannot parse as a number")
		}
		return NewNumber(d), nil
	case KindBool:
		if args[0].Bool {
			return NewNumber(decimal.NewFromInt(1)), nil
		}
		return NewNumber(decimal.Zero), nil
	default:
		return Variable{}, errOpcodeErr("number", "unsupported type")
	}
}

func builtinBool(args []Variable) (Variable, error) {
	switch args[0].Kind {
	case KindBool:
		return args[0], nil
	case KindString:
		b, err := strconv.ParseBool(args[0].Str)
		if err != nil {
			return Variable{}, errOpcodeErr("bool", "cannot parse as a bool")
		}
		return NewBool(b), nil
	case KindNumber:
		return NewBool(!args[0].Number.IsZero()), nil
	default:
		return Variable{}, errOpcodeErr("bool", "unsupported type")
	}
}

func builtinType(args []Variable) (Variable, error) {
	return NewString(args[0].Kind.String()), nil
}

func builtinKeys(args []Variable) (Variable, error) {
	if args[0].Kind != KindObject {
		return Variable{}, errOpcodeErr("keys", "unsupported type")
	}
	out := make([]Variable, 0, len(args[0].Object))
	for k := range args[0].Object {
		out = append(out, NewString(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Str < out[j].Str })
	return NewArray(out), nil
}

func builtinValues(args []Variable) (Variable, error) {
	if args[0].Kind != KindObject {
		return Variable{}, errOpcodeErr("values", "unsupported type")
	}
	keys := make([]string, 0, len(args[0].Object))
	for k := range args[0].Object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Variable, len(keys))
	for i, k := range keys {
		out[i] = args[0].Object[k]
	}
	return NewArray(out), nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func builtinDate(args []Variable) (Variable, error) {
	if args[0].Kind != KindString {
		return Variable{}, errOpcodeErr("d", "unsupported type")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, args[0].Str); err == nil {
			return NewDate(t), nil
		}
	}
	return Variable{}, errOpcodeErr("d", "unrecognized date format")
}
