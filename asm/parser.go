// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/shadervm/bytecode"
)

// Parser turns assembly tokens into a structured bytecode.Program.
type Parser struct {
	source  string
	tokens  []Token
	current int
	errors  SourceErrors

	program  bytecode.Program
	staged   bool
	declared bool
	temps    bool
}

// Parse assembles source into a structured program. A source without any
// dcl_ directive gets its declarations inferred from the registers it
// addresses. The stage defaults to compute.
//
// On failure the error is a SourceErrors holding every error found.
func Parse(source string) (*bytecode.Program, error) {
	return NewParser(source, NewLexer(source).Tokenize()).Parse()
}

// NewParser creates a parser over tokens lexed from source.
func NewParser(source string, tokens []Token) *Parser {
	return &Parser{source: source, tokens: tokens}
}

// Parse parses every line and returns the program.
func (p *Parser) Parse() (*bytecode.Program, error) {
	p.program.Stage = gputypes.ShaderStageCompute

	for !p.isAtEnd() {
		if p.match(TokenNewline) {
			continue
		}
		if err := p.statement(); err != nil {
			p.errors.Add(err)
			p.synchronize()
		}
	}

	if p.errors.HasErrors() {
		return nil, p.errors
	}
	if !p.declared {
		return bytecode.NewProgram(p.program.Stage, p.program.Instructions), nil
	}
	prog := p.program
	return &prog, nil
}

// statement parses one line: a stage directive, a declaration or an
// instruction.
func (p *Parser) statement() *SourceError {
	tok := p.peek()
	if tok.Kind != TokenIdent {
		return p.errorf(tok, "expected a directive or instruction, found %s", tok)
	}

	name := strings.ToLower(tok.Lexeme)
	var err *SourceError
	if strings.HasPrefix(name, "dcl_") {
		err = p.declaration(name)
	} else if stage, ok := stageOf(name); ok {
		err = p.stageDirective(stage)
	} else {
		err = p.instruction()
	}
	if err != nil {
		return err
	}
	return p.endOfLine()
}

func stageOf(name string) (gputypes.ShaderStage, bool) {
	prefix, version, _ := strings.Cut(name, "_")
	if strings.Trim(version, "0123456789_") != "" {
		return 0, false
	}
	return lookup(stages, prefix)
}

func (p *Parser) stageDirective(stage gputypes.ShaderStage) *SourceError {
	tok := p.advance()
	switch {
	case p.staged:
		return p.errorf(tok, "duplicate stage directive")
	case p.declared || len(p.program.Instructions) > 0:
		return p.errorf(tok, "stage directive must come first")
	}
	p.staged = true
	p.program.Stage = stage
	return nil
}

func (p *Parser) declaration(name string) *SourceError {
	tok := p.advance()
	p.declared = true
	d := &p.program.Declarations

	switch {
	case name == "dcl_temps":
		n, err := p.uint()
		if err != nil {
			return err
		}
		if p.temps {
			return p.errorf(tok, "duplicate dcl_temps")
		}
		p.temps = true
		d.Temps = int(n)

	case name == "dcl_input":
		idx, err := p.declRegister("v", true)
		if err != nil {
			return err
		}
		d.Inputs = max(d.Inputs, int(idx)+1)

	case name == "dcl_output":
		idx, err := p.declRegister("o", true)
		if err != nil {
			return err
		}
		d.Outputs = max(d.Outputs, int(idx)+1)

	case name == "dcl_indexabletemp":
		idx, size, err := p.declArray("x")
		if err != nil {
			return err
		}
		if _, dup := d.IndexableTemp(idx); dup {
			return p.errorf(tok, "x%d is declared twice", idx)
		}
		d.IndexableTemps = append(d.IndexableTemps, bytecode.IndexableTempDecl{Index: idx, Size: size})

	case name == "dcl_constantbuffer":
		idx, size, err := p.declArray("cb")
		if err != nil {
			return err
		}
		if _, dup := d.ConstantBuffer(idx); dup {
			return p.errorf(tok, "cb%d is declared twice", idx)
		}
		d.ConstantBuffers = append(d.ConstantBuffers, bytecode.ConstantBufferDecl{Index: idx, Size: size})

	case strings.HasPrefix(name, "dcl_resource_"):
		dim, ok := lookup(resourceDimensions, strings.TrimPrefix(name, "dcl_resource_"))
		if !ok {
			return p.errorf(tok, "unknown resource dimension in %s", tok.Lexeme)
		}
		idx, err := p.declRegister("t", false)
		if err != nil {
			return err
		}
		decl := bytecode.ResourceDecl{Index: idx, Dimension: dim}
		if p.match(TokenComma) {
			st, err := parseKeyword(p, sampleTypes, "sample type")
			if err != nil {
				return err
			}
			decl.SampleType = st
		}
		if _, dup := d.Resource(idx); dup {
			return p.errorf(tok, "t%d is declared twice", idx)
		}
		d.Resources = append(d.Resources, decl)

	case name == "dcl_sampler":
		idx, err := p.declRegister("s", false)
		if err != nil {
			return err
		}
		decl := bytecode.SamplerDecl{Index: idx}
		if p.match(TokenComma) {
			mode, err := parseKeyword(p, samplerModes, "sampler mode")
			if err != nil {
				return err
			}
			decl.Type = mode
		}
		if _, dup := d.Sampler(idx); dup {
			return p.errorf(tok, "s%d is declared twice", idx)
		}
		d.Samplers = append(d.Samplers, decl)

	default:
		return p.errorf(tok, "unknown directive %s", tok.Lexeme)
	}
	return nil
}

// declRegister parses the register named by a declaration, such as v3 or
// o0.xy. The mask of inputs and outputs is checked and dropped.
func (p *Parser) declRegister(prefix string, masked bool) (uint32, *SourceError) {
	tok, err := p.expect(TokenIdent, prefix+" register")
	if err != nil {
		return 0, err
	}
	name, ok := parseRegisterName(tok.Lexeme)
	if !ok || !name.indexed || name.prefix != prefix {
		return 0, p.errorf(tok, "expected %s register, found %s", prefix, tok)
	}
	if masked && p.match(TokenDot) {
		if _, err := p.writeMask(); err != nil {
			return 0, err
		}
	}
	return name.index, nil
}

// declArray parses <prefix>N[size].
func (p *Parser) declArray(prefix string) (index, size uint32, err *SourceError) {
	if index, err = p.declRegister(prefix, false); err != nil {
		return 0, 0, err
	}
	if _, err = p.expect(TokenLeftBracket, "'[' before the array size"); err != nil {
		return 0, 0, err
	}
	if size, err = p.uint(); err != nil {
		return 0, 0, err
	}
	_, err = p.expect(TokenRightBracket, "']' after the array size")
	return index, size, err
}

func (p *Parser) instruction() *SourceError {
	tok := p.advance()
	in, tested, err := p.mnemonic(tok)
	if err != nil {
		return err
	}

	if !p.check(TokenNewline) && !p.isAtEnd() {
		for {
			dest := len(in.Operands) == 0 && in.Opcode.Class() == bytecode.ClassArithmetic
			op, err := p.operand(dest)
			if err != nil {
				return err
			}
			in.Operands = append(in.Operands, op)
			if !p.match(TokenComma) {
				break
			}
		}
	}

	if lo, hi := in.Opcode.OperandRange(); len(in.Operands) < lo || len(in.Operands) > hi {
		return p.errorf(tok, "%s takes %s, got %d", in.Opcode, operandCount(lo, hi), len(in.Operands))
	}
	if in.Opcode == bytecode.OpDiscard && tested != (len(in.Operands) == 1) {
		return p.errorf(tok, "discard takes a test suffix exactly when it has a condition")
	}

	p.program.Instructions = append(p.program.Instructions, in)
	return nil
}

func operandCount(lo, hi int) string {
	switch {
	case lo == hi && lo == 1:
		return "1 operand"
	case lo == hi:
		return fmt.Sprintf("%d operands", lo)
	default:
		return fmt.Sprintf("%d to %d operands", lo, hi)
	}
}

// mnemonic decodes an opcode name with its optional test and saturate
// suffixes, e.g. "breakc_nz" or "mad_sat".
func (p *Parser) mnemonic(tok Token) (in bytecode.Instruction, tested bool, err *SourceError) {
	name := strings.ToLower(tok.Lexeme)
	base, sat := strings.CutSuffix(name, "_sat")
	op, ok := bytecode.LookupOpcode(base)
	if !ok {
		for _, t := range []bytecode.TestBoolean{bytecode.TestZero, bytecode.TestNonZero} {
			if b, cut := strings.CutSuffix(base, t.Suffix()); cut {
				if op, ok = bytecode.LookupOpcode(b); ok {
					in.Test, tested = t, true
					break
				}
			}
		}
	}

	switch {
	case !ok:
		return in, false, p.errorf(tok, "unknown instruction %q", tok.Lexeme)
	case op.Class() == bytecode.ClassBranch:
		return in, false, p.errorf(tok, "%s is produced by lowering and cannot be assembled", op)
	case sat && op.Class() != bytecode.ClassArithmetic:
		return in, false, p.errorf(tok, "%s cannot saturate", op)
	case tested && !op.HasTest():
		return in, false, p.errorf(tok, "%s takes no test suffix", op)
	case !tested && op.HasTest() && op != bytecode.OpDiscard:
		return in, false, p.errorf(tok, "%s needs a _z or _nz test", op)
	}
	in.Opcode, in.Saturate = op, sat
	return in, tested, nil
}

// operand parses one operand with its optional -, |..| modifiers.
func (p *Parser) operand(dest bool) (bytecode.Operand, *SourceError) {
	start := p.peek()
	mod := bytecode.ModNone
	if p.match(TokenMinus) {
		mod = bytecode.ModNeg
	}
	abs := p.match(TokenPipe)
	if abs {
		if mod == bytecode.ModNeg {
			mod = bytecode.ModAbsNeg
		} else {
			mod = bytecode.ModAbs
		}
	}

	op, err := p.operandBody(dest)
	if err != nil {
		return op, err
	}
	if abs {
		if _, err := p.expect(TokenPipe, "'|' closing the absolute value"); err != nil {
			return op, err
		}
	}
	if mod != bytecode.ModNone {
		if dest {
			return op, p.errorf(start, "destination operand cannot take a modifier")
		}
		op = op.WithModifier(mod)
	}
	return op, nil
}

type registerName struct {
	prefix  string
	index   uint32
	indexed bool
}

// parseRegisterName splits a register name such as "cb2" into its prefix
// and index. A bare prefix is returned unindexed.
func parseRegisterName(s string) (registerName, bool) {
	s = strings.ToLower(s)
	i := 0
	for i < len(s) && s[i] >= 'a' && s[i] <= 'z' {
		i++
	}
	if i == 0 {
		return registerName{}, false
	}
	name := registerName{prefix: s[:i]}
	if i == len(s) {
		return name, true
	}
	v, err := strconv.ParseUint(s[i:], 10, 32)
	if err != nil {
		return registerName{}, false
	}
	name.index, name.indexed = uint32(v), true
	return name, true
}

func (p *Parser) operandBody(dest bool) (bytecode.Operand, *SourceError) {
	tok := p.peek()
	if tok.Kind != TokenIdent {
		return bytecode.Operand{}, p.errorf(tok, "expected operand, found %s", tok)
	}

	switch strings.ToLower(tok.Lexeme) {
	case "l", "d":
		if dest {
			return bytecode.Operand{}, p.errorf(tok, "destination operand cannot be a literal")
		}
		p.advance()
		if tok.Lexeme == "d" || tok.Lexeme == "D" {
			return p.literal64()
		}
		return p.literal32()
	}

	p.advance()
	name, ok := parseRegisterName(tok.Lexeme)
	if !ok {
		return bytecode.Operand{}, p.errorf(tok, "unknown register %q", tok.Lexeme)
	}

	var op bytecode.Operand
	switch name.prefix {
	case "r", "v", "o":
		switch name.prefix {
		case "r":
			op = bytecode.Temp(name.index)
		case "v":
			op = bytecode.Input(name.index)
		default:
			op = bytecode.Output(name.index)
		}
		if !name.indexed {
			idx, err := p.bracketIndex()
			if err != nil {
				return op, err
			}
			op.Indices[0] = idx
		}
	case "x", "cb":
		if !name.indexed {
			return op, p.errorf(tok, "%s needs an immediate array number", tok.Lexeme)
		}
		if name.prefix == "x" {
			op = bytecode.IndexableTemp(name.index, 0)
		} else {
			op = bytecode.ConstantBuffer(name.index, 0)
		}
		idx, err := p.bracketIndex()
		if err != nil {
			return op, err
		}
		op.Indices[1] = idx
	default:
		return op, p.errorf(tok, "unknown register %q", tok.Lexeme)
	}

	if p.match(TokenDot) {
		if dest {
			m, err := p.writeMask()
			if err != nil {
				return op, err
			}
			op = op.WithMask(m)
		} else {
			s, err := p.swizzle()
			if err != nil {
				return op, err
			}
			op = op.WithSwizzle(s)
		}
	}
	return op, nil
}

// bracketIndex parses [N], [rK.c] or [rK.c + N].
func (p *Parser) bracketIndex() (bytecode.OperandIndex, *SourceError) {
	if _, err := p.expect(TokenLeftBracket, "'['"); err != nil {
		return bytecode.OperandIndex{}, err
	}

	var idx bytecode.OperandIndex
	if p.check(TokenNumber) {
		v, err := p.uint()
		if err != nil {
			return idx, err
		}
		idx.Value = v
	} else {
		start := p.peek()
		reg, err := p.operandBody(false)
		if err != nil {
			return idx, err
		}
		if reg.Type == bytecode.OperandImmediate32 || reg.Type == bytecode.OperandImmediate64 {
			return idx, p.errorf(start, "relative index must be a register")
		}
		idx = bytecode.OperandIndex{Representation: bytecode.IndexRelative, Register: &reg}
		if p.match(TokenPlus) {
			v, err := p.uint()
			if err != nil {
				return idx, err
			}
			if v != 0 {
				idx.Value, idx.Representation = v, bytecode.IndexImmediatePlusRelative
			}
		}
	}

	_, err := p.expect(TokenRightBracket, "']'")
	return idx, err
}

func (p *Parser) componentList() ([]bytecode.Component, Token, *SourceError) {
	tok, err := p.expect(TokenIdent, "component selection")
	if err != nil {
		return nil, tok, err
	}
	s := strings.ToLower(tok.Lexeme)
	if len(s) > 4 {
		return nil, tok, p.errorf(tok, "component selection %q is longer than four", tok.Lexeme)
	}
	comps := make([]bytecode.Component, len(s))
	for i := range len(s) {
		c := strings.IndexByte("xyzw", s[i])
		if c < 0 {
			return nil, tok, p.errorf(tok, "invalid component %q in %q", s[i], tok.Lexeme)
		}
		comps[i] = bytecode.Component(c)
	}
	return comps, tok, nil
}

// writeMask parses the components a destination writes. They must be
// listed in xyzw order without repeats.
func (p *Parser) writeMask() (bytecode.ComponentMask, *SourceError) {
	comps, tok, err := p.componentList()
	if err != nil {
		return 0, err
	}
	var m bytecode.ComponentMask
	last := -1
	for _, c := range comps {
		if int(c) <= last {
			return 0, p.errorf(tok, "write mask %q must list components in xyzw order", tok.Lexeme)
		}
		m |= bytecode.ComponentMask(1) << c
		last = int(c)
	}
	return m, nil
}

// swizzle parses a source selection. Selections shorter than four repeat
// their last component, so .x reads as .xxxx.
func (p *Parser) swizzle() (bytecode.Swizzle, *SourceError) {
	comps, _, err := p.componentList()
	if err != nil {
		return bytecode.Swizzle{}, err
	}
	var s bytecode.Swizzle
	for i := range s {
		s[i] = comps[min(i, len(comps)-1)]
	}
	return s, nil
}

// literal32 parses l(a) or l(a, b, c, d). A single value fills all four
// components.
func (p *Parser) literal32() (bytecode.Operand, *SourceError) {
	open, err := p.expect(TokenLeftParen, "'(' after l")
	if err != nil {
		return bytecode.Operand{}, err
	}
	var vals []bytecode.Number
	for {
		n, err := p.number32()
		if err != nil {
			return bytecode.Operand{}, err
		}
		vals = append(vals, n)
		if !p.match(TokenComma) {
			break
		}
	}
	if _, err := p.expect(TokenRightParen, "')' closing the literal"); err != nil {
		return bytecode.Operand{}, err
	}

	switch len(vals) {
	case 1:
		return bytecode.Imm32(bytecode.Splat(vals[0])), nil
	case 4:
		return bytecode.Imm32(bytecode.Number4{vals[0], vals[1], vals[2], vals[3]}), nil
	default:
		return bytecode.Operand{}, p.errorf(open, "literal needs 1 or 4 components, got %d", len(vals))
	}
}

// literal64 parses d(a, b).
func (p *Parser) literal64() (bytecode.Operand, *SourceError) {
	if _, err := p.expect(TokenLeftParen, "'(' after d"); err != nil {
		return bytecode.Operand{}, err
	}
	a, err := p.number64()
	if err != nil {
		return bytecode.Operand{}, err
	}
	if _, err := p.expect(TokenComma, "',' between doubles"); err != nil {
		return bytecode.Operand{}, err
	}
	b, err := p.number64()
	if err != nil {
		return bytecode.Operand{}, err
	}
	if _, err := p.expect(TokenRightParen, "')' closing the literal"); err != nil {
		return bytecode.Operand{}, err
	}
	return bytecode.Imm64(a, b), nil
}

// signedToken consumes an optional sign and the number or Inf/NaN word
// after it.
func (p *Parser) signedToken() (neg bool, tok Token, err *SourceError) {
	neg = p.match(TokenMinus)
	if !neg {
		p.match(TokenPlus)
	}
	tok = p.advance()
	if tok.Kind != TokenNumber && tok.Kind != TokenIdent {
		return neg, tok, p.errorf(tok, "expected number, found %s", tok)
	}
	return neg, tok, nil
}

func special(tok Token) (float64, bool) {
	switch strings.ToLower(tok.Lexeme) {
	case "inf":
		return math.Inf(1), true
	case "nan":
		return math.NaN(), true
	default:
		return 0, false
	}
}

func isFloatLexeme(s string) bool {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return false
	}
	return strings.ContainsAny(s, ".eE")
}

// number32 parses one component of an l() literal. Numbers with a point
// or exponent are floats; plain numbers are integer bit patterns.
func (p *Parser) number32() (bytecode.Number, *SourceError) {
	neg, tok, err := p.signedToken()
	if err != nil {
		return 0, err
	}

	if tok.Kind == TokenIdent {
		f, ok := special(tok)
		if !ok {
			return 0, p.errorf(tok, "expected number, found %s", tok)
		}
		if neg {
			f = -f
		}
		return bytecode.Float(float32(f)), nil
	}

	if isFloatLexeme(tok.Lexeme) {
		f, perr := strconv.ParseFloat(tok.Lexeme, 32)
		if perr != nil {
			return 0, p.errorf(tok, "invalid float %s", tok.Lexeme)
		}
		if neg {
			f = -f
		}
		return bytecode.Float(float32(f)), nil
	}

	v, perr := strconv.ParseUint(tok.Lexeme, 0, 32)
	if perr != nil || (neg && v > 1<<31) {
		return 0, p.errorf(tok, "integer %s does not fit in 32 bits", tok.Lexeme)
	}
	if neg {
		return bytecode.Number(uint32(-int64(v))), nil
	}
	return bytecode.Number(uint32(v)), nil
}

func (p *Parser) number64() (float64, *SourceError) {
	neg, tok, err := p.signedToken()
	if err != nil {
		return 0, err
	}
	f, ok := special(tok)
	if !ok {
		if tok.Kind != TokenNumber {
			return 0, p.errorf(tok, "expected number, found %s", tok)
		}
		var perr error
		if f, perr = strconv.ParseFloat(tok.Lexeme, 64); perr != nil {
			return 0, p.errorf(tok, "invalid double %s", tok.Lexeme)
		}
	}
	if neg {
		f = -f
	}
	return f, nil
}

func (p *Parser) uint() (uint32, *SourceError) {
	tok, err := p.expect(TokenNumber, "number")
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseUint(tok.Lexeme, 0, 32)
	if perr != nil {
		return 0, p.errorf(tok, "expected an unsigned integer, found %s", tok.Lexeme)
	}
	return uint32(v), nil
}

func parseKeyword[T comparable](p *Parser, table []keyword[T], what string) (T, *SourceError) {
	var zero T
	tok, err := p.expect(TokenIdent, what)
	if err != nil {
		return zero, err
	}
	v, ok := lookup(table, strings.ToLower(tok.Lexeme))
	if !ok {
		return zero, p.errorf(tok, "unknown %s %q", what, tok.Lexeme)
	}
	return v, nil
}

func (p *Parser) endOfLine() *SourceError {
	if p.match(TokenNewline) || p.isAtEnd() {
		return nil
	}
	tok := p.peek()
	return p.errorf(tok, "unexpected %s at end of line", tok)
}

// synchronize skips to the start of the next line after an error.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.advance().Kind == TokenNewline {
			return
		}
	}
}

func (p *Parser) errorf(tok Token, format string, args ...any) *SourceError {
	return &SourceError{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
		Source:  p.source,
	}
}

func (p *Parser) expect(kind TokenKind, what string) (Token, *SourceError) {
	tok := p.peek()
	if tok.Kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", what, tok)
	}
	return p.advance(), nil
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.current]
	if tok.Kind != TokenEOF {
		p.current++
	}
	return tok
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) isAtEnd() bool {
	return p.check(TokenEOF)
}
