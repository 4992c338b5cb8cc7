// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/crashvm/cell"
)

const (
	MACRO_DEPTH = 16      // Maximum macro expansion depth.
	ORG_LIMIT   = 1 << 24 // Maximum .org address.
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

var (
	reLabel     = regexp.MustCompile(`^[A-Za-z_.][A-Za-z0-9_.]*$`)
	reCharacter = regexp.MustCompile(`'\\?[^']'`)
	reParen     = regexp.MustCompile(`\$\([^\$]*\)`)
)

// Assembler is a two pass macro assembler for the crashvm machine.
// The first pass lays out every line and records the labels, the second
// pass links label references to their addresses.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]int      // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	depth      int // Macro expansion depth.
	expansions int // Count of macro expansions.
	nesting    int // Equate evaluation depth.
}

// Compile assembles source text into a program.
func Compile(source string) (prog *Program, err error) {
	asm := &Assembler{}
	return asm.Parse(strings.NewReader(source))
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// isRegister returns the register named by the word, ignoring case.
func isRegister(word string) (reg CodeReg, ok bool) {
	reg, ok = regMap[strings.ToLower(word)]
	return
}

// valueOf returns the value of a numeric literal.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if !cell.Fits(value) {
		err = ErrValueRange
		return
	}

	return
}

// expression is a literal, optionally relative to a label.
type expression struct {
	Value int64
	Label string
}

// splitTerms splits an expression into its signed terms.
func splitTerms(text string) (terms []string) {
	start := 0
	for n := 1; n < len(text); n++ {
		if text[n] == '+' || text[n] == '-' {
			terms = append(terms, text[start:n])
			start = n
		}
	}
	terms = append(terms, text[start:])
	return
}

// expression evaluates a sum of literals, equates and at most one label.
func (asm *Assembler) expression(text string) (expr expression, err error) {
	if len(text) == 0 {
		err = ErrParseValue(text)
		return
	}

	for _, term := range splitTerms(text) {
		negate := false
		switch term[0] {
		case '+':
			term = term[1:]
		case '-':
			negate = true
			term = term[1:]
		}
		term = strings.TrimPrefix(term, ":")
		term = strings.TrimSuffix(term, ":")
		if len(term) == 0 {
			err = ErrParseValue(text)
			return
		}

		var value int64
		switch {
		case term[0] >= '0' && term[0] <= '9':
			value, err = asm.valueOf(term)
			if err != nil {
				return
			}
		case !reLabel.MatchString(term):
			err = ErrParseValue(term)
			return
		default:
			if _, ok := isRegister(term); ok {
				err = ErrOperandKind
				return
			}
			equate, ok := asm.Equate[term]
			if ok {
				if asm.nesting >= MACRO_DEPTH {
					err = ErrEquateSyntax
					return
				}
				var sub expression
				asm.nesting++
				sub, err = asm.expression(equate)
				asm.nesting--
				if err != nil {
					return
				}
				if len(sub.Label) > 0 {
					if negate || len(expr.Label) > 0 {
						err = ErrOperandKind
						return
					}
					expr.Label = sub.Label
				}
				value = sub.Value
				break
			}
			if negate || len(expr.Label) > 0 {
				err = ErrOperandKind
				return
			}
			expr.Label = term
		}

		if negate {
			value = -value
		}
		expr.Value += value
	}

	if !cell.Fits(expr.Value) {
		err = ErrValueRange
		return
	}

	return
}

// operand parses an instruction operand.
func (asm *Assembler) operand(word string) (mode CodeMode, reg CodeReg, expr expression, err error) {
	if reg, ok := isRegister(word); ok {
		return MODE_REG, reg, expr, nil
	}

	if !strings.HasPrefix(word, "[") {
		mode = MODE_IMM
		expr, err = asm.expression(word)
		return
	}

	if !strings.HasSuffix(word, "]") || len(word) < 3 {
		err = ErrParseValue(word)
		return
	}
	inner := word[1 : len(word)-1]

	terms := splitTerms(inner)
	head := terms[0]
	if equate, ok := asm.Equate[head]; ok {
		if _, is_reg := isRegister(equate); is_reg {
			head = equate
		}
	}

	reg, ok := isRegister(head)
	if !ok {
		mode = MODE_DIRECT
		expr, err = asm.expression(inner)
		return
	}

	mode = MODE_INDEXED
	offset := strings.Join(terms[1:], "")
	if len(offset) > 0 {
		expr, err = asm.expression(offset)
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var sub expression
		sub, err = asm.expression(str)
		if err != nil || len(sub.Label) > 0 {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(sub.Value)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok || !cell.Fits(value) {
		err = ErrValueRange
		return
	}
	return
}

// stripComment removes a trailing ';' or '#' comment, ignoring character literals.
func stripComment(text string) string {
	quoted := false
	for n := 0; n < len(text); n++ {
		switch text[n] {
		case '\\':
			if quoted {
				n++
			}
		case '\'':
			quoted = !quoted
		case ';', '#':
			if !quoted {
				return text[:n]
			}
		}
	}
	return text
}

// splitWords splits a line on whitespace and commas. Spaces inside of
// brackets are dropped, so '[x + 1]' is a single word.
func splitWords(line string) (words []string, err error) {
	var word strings.Builder
	depth := 0

	flush := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}

	for _, r := range line {
		switch {
		case r == '[':
			depth++
			word.WriteRune(r)
		case r == ']':
			depth--
			if depth < 0 {
				err = ErrParseValue(line)
				return
			}
			word.WriteRune(r)
		case r == ' ' || r == '\t' || r == ',':
			if depth == 0 {
				flush()
			}
		default:
			word.WriteRune(r)
		}
	}

	if depth != 0 {
		err = ErrParseValue(line)
		return
	}

	flush()
	return
}

// parseLine parses a single line as an opcode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	line = reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "t":
				str = "\t"
			case "e":
				str = "\033"
			case "0":
				str = "\000"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	line = reParen.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%v", value)
	})
	if err != nil {
		return
	}

	words, err = splitWords(line)
	if err != nil || len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if strings.EqualFold(words[0], ".equ") {
		if len(words) != 3 || !reLabel.MatchString(words[1]) {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		if !reLabel.MatchString(label) {
			err = ErrLabelInvalid
			return
		}
		if _, is_reg := isRegister(label); is_reg {
			err = ErrLabelInvalid
			return
		}
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.currentIp()
		if asm.Verbose {
			log.Printf("%v: label %v = %#x", lineno, label, asm.Label[label])
		}
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		if asm.depth >= MACRO_DEPTH {
			err = ErrMacroRecursion
			return
		}

		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		asm.depth++
		defer func() {
			asm.Equate = old_equate
			asm.depth--
		}()

		asm.expansions++
		local := fmt.Sprintf("_%v_%v_", name, asm.expansions)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", local)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentIp gets the current Ip
func (asm *Assembler) currentIp() int {
	if len(asm.Opcode) == 0 {
		return 0
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Ip + last.Size()
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}
	asm.depth = 0
	asm.expansions = 0
	asm.nesting = 0

	// Pass 1: layout and labels.
	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		line = strings.TrimSpace(stripComment(text))
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && strings.EqualFold(words[0], ".macro") {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 || !reLabel.MatchString(words[1]) {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && strings.EqualFold(words[0], ".endm") {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Pass 2: final linking of labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		for _, link := range op.Links {
			ip, ok := asm.Label[link.Label]
			if !ok {
				lineno = op.LineNo
				line = strings.Join(op.Words, " ")
				err = ErrLabelMissing(link.Label)
				return
			}
			if !op.patch(link.Index, cell.New(int64(ip))) {
				log.Fatalf("Unable to link label '%s' to line %d: %v", link.Label, op.LineNo, op.Words)
			}
		}
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
		Labels:  maps.Clone(asm.Label),
	}
	if prog.Labels == nil {
		prog.Labels = map[string]int{}
	}

	return
}

// isData returns true if the word starts a data line.
func isData(word string) bool {
	switch word[0] {
	case '-', '+', ':':
		return true
	}
	return word[0] >= '0' && word[0] <= '9'
}

// dataWords generates data cells from expressions.
func (asm *Assembler) dataWords(words []string) (data []cell.Cell, links []Link, err error) {
	if len(words) == 0 {
		err = ErrOperandCount
		return
	}

	for n, word := range words {
		var expr expression
		expr, err = asm.expression(word)
		if err != nil {
			return
		}
		data = append(data, cell.New(expr.Value))
		if len(expr.Label) > 0 {
			links = append(links, Link{Index: n, Label: expr.Label, Addend: expr.Value})
		}
	}

	return
}

// org generates the zero fill up to an address.
func (asm *Assembler) org(words []string) (data []cell.Cell, err error) {
	if len(words) != 1 {
		err = ErrOrgSyntax
		return
	}

	expr, err := asm.expression(words[0])
	if err != nil {
		return
	}
	if len(expr.Label) > 0 {
		err = ErrOrgSyntax
		return
	}

	ip := asm.currentIp()
	switch {
	case expr.Value < int64(ip):
		err = ErrOrgBackward
	case expr.Value > ORG_LIMIT:
		err = ErrValueRange
	default:
		data = make([]cell.Cell, int(expr.Value)-ip)
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []Code
	var data []cell.Cell
	var links []Link

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if err != nil || (len(codes) == 0 && len(data) == 0) {
			return
		}
		opcode := Opcode{LineNo: lineno, Ip: asm.currentIp(), Words: initial_words, Codes: codes, Data: data, Links: links}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	mnemonic := strings.ToLower(words[0])

	switch {
	case mnemonic == ".org" || mnemonic == "offset":
		data, err = asm.org(words[1:])
		return
	case mnemonic == ".word":
		data, links, err = asm.dataWords(words[1:])
		return
	case isData(words[0]):
		data, links, err = asm.dataWords(words)
		return
	}

	op, ok := Mnemonic(mnemonic)
	if !ok {
		err = ErrInstructionInvalid
		return
	}

	args := words[1:]

	if op.Operand() == OPERAND_NONE {
		if len(args) != 0 {
			err = ErrOperandCount
			return
		}
		codes = append(codes, MakeCode(op, MODE_NONE, 0))
		return
	}

	if len(args) != 1 {
		err = ErrOperandCount
		return
	}

	mode, reg, expr, err := asm.operand(args[0])
	if err != nil {
		return
	}

	if op.Operand() == OPERAND_LOCATION && mode == MODE_IMM {
		err = ErrOperandKind
		return
	}

	codes = append(codes, MakeCode(op, mode, reg, cell.New(expr.Value)))
	if len(expr.Label) > 0 {
		links = append(links, Link{Index: 1, Label: expr.Label, Addend: expr.Value})
	}

	return
}
