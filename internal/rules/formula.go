package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/requestcontext"
)

// FormulaParser evaluates the formula language used in criterion values and
// action parameters. A formula starts with "=" and is either a single operand
// or a function call with nested operands. Operands are numbers, quoted
// strings, or condition references of the form "conditionId:PROPERTY" that
// read an attribute off the first row selected by a previously evaluated
// condition.
type FormulaParser struct {
	binder *Binder
}

// NewFormulaParser builds a parser resolving condition references through the
// binder.
func NewFormulaParser(binder *Binder) *FormulaParser {
	return &FormulaParser{binder: binder}
}

// Parse evaluates a formula against the condition result states.
func (p *FormulaParser) Parse(ctx context.Context, formula string, states map[string]DataState) (any, error) {
	if !strings.HasPrefix(formula, "=") {
		return nil, pkgerrors.Newf(pkgerrors.CodeBadFormat, "formula %q does not start with =", formula)
	}
	parser := &formulaScanner{ctx: ctx, parent: p, input: formula[1:], states: states}
	value, err := parser.parseExpression()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.CodeBadFormat, "invalid formula %q", formula)
	}
	parser.skipSpaces()
	if parser.pos < len(parser.input) {
		return nil, pkgerrors.Newf(pkgerrors.CodeBadFormat,
			"invalid formula %q: trailing input at offset %d", formula, parser.pos)
	}
	return value, nil
}

type formulaScanner struct {
	ctx    context.Context
	parent *FormulaParser
	input  string
	pos    int
	states map[string]DataState
}

func (s *formulaScanner) skipSpaces() {
	for s.pos < len(s.input) && s.input[s.pos] == ' ' {
		s.pos++
	}
}

func (s *formulaScanner) parseExpression() (any, error) {
	s.skipSpaces()
	if s.pos >= len(s.input) {
		return nil, fmt.Errorf("unexpected end of formula")
	}
	c := s.input[s.pos]
	switch {
	case c == '"' || c == '\'':
		return s.parseString(c)
	case c == '-' || unicode.IsDigit(rune(c)):
		return s.parseNumber()
	case unicode.IsLetter(rune(c)) || c == '_':
		return s.parseIdentifier()
	default:
		return nil, fmt.Errorf("unexpected character %q at offset %d", c, s.pos)
	}
}

func (s *formulaScanner) parseString(quote byte) (any, error) {
	s.pos++
	start := s.pos
	for s.pos < len(s.input) && s.input[s.pos] != quote {
		s.pos++
	}
	if s.pos >= len(s.input) {
		return nil, fmt.Errorf("unterminated string at offset %d", start)
	}
	value := s.input[start:s.pos]
	s.pos++
	return value, nil
}

func (s *formulaScanner) parseNumber() (any, error) {
	start := s.pos
	if s.input[s.pos] == '-' {
		s.pos++
	}
	for s.pos < len(s.input) && (unicode.IsDigit(rune(s.input[s.pos])) || s.input[s.pos] == '.') {
		s.pos++
	}
	number, err := strconv.ParseFloat(s.input[start:s.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s.input[start:s.pos])
	}
	return number, nil
}

func (s *formulaScanner) parseIdentifier() (any, error) {
	start := s.pos
	for s.pos < len(s.input) && (unicode.IsLetter(rune(s.input[s.pos])) || unicode.IsDigit(rune(s.input[s.pos])) || s.input[s.pos] == '_') {
		s.pos++
	}
	name := s.input[start:s.pos]
	if s.pos < len(s.input) && s.input[s.pos] == '(' {
		return s.parseCall(name)
	}
	if s.pos < len(s.input) && s.input[s.pos] == ':' {
		s.pos++
		propertyStart := s.pos
		for s.pos < len(s.input) && (unicode.IsLetter(rune(s.input[s.pos])) || unicode.IsDigit(rune(s.input[s.pos])) || s.input[s.pos] == '_') {
			s.pos++
		}
		return s.resolveReference(name, s.input[propertyStart:s.pos])
	}
	return nil, fmt.Errorf("unexpected identifier %q at offset %d", name, start)
}

func (s *formulaScanner) parseCall(name string) (any, error) {
	s.pos++ // consume '('
	var args []any
	s.skipSpaces()
	if s.pos < len(s.input) && s.input[s.pos] == ')' {
		s.pos++
		return applyFunction(s.ctx, name, args)
	}
	for {
		arg, err := s.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		s.skipSpaces()
		if s.pos >= len(s.input) {
			return nil, fmt.Errorf("unterminated call to %s", name)
		}
		switch s.input[s.pos] {
		case ',':
			s.pos++
		case ')':
			s.pos++
			return applyFunction(s.ctx, name, args)
		default:
			return nil, fmt.Errorf("unexpected character %q in call to %s", s.input[s.pos], name)
		}
	}
}

// resolveReference reads an attribute off the first row selected by a
// previously evaluated condition.
func (s *formulaScanner) resolveReference(conditionID, property string) (any, error) {
	state, ok := s.states[conditionID]
	if !ok {
		return nil, fmt.Errorf("reference to unevaluated condition %s", conditionID)
	}
	rows := state.ReferenceEvaluables()
	if len(rows) == 0 {
		return nil, fmt.Errorf("condition %s selected no row", conditionID)
	}
	attribute, err := s.parent.binder.Attribute(state.Reference(), property)
	if err != nil {
		return nil, err
	}
	return attribute.Value(s.ctx, rows[0])
}

func argCount(name string, args []any, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s expects %d arguments, got %d", name, want, len(args))
	}
	return nil
}

func numberArg(name string, args []any, i int) (float64, error) {
	switch v := args[i].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s: argument %d is not a number", name, i+1)
	}
}

func dateArg(name string, args []any, i int) (study.PartialDate, error) {
	switch v := args[i].(type) {
	case study.PartialDate:
		return v, nil
	case string:
		date, err := study.ParsePartialDate(v)
		if err != nil {
			return study.PartialDate{}, fmt.Errorf("%s: argument %d is not a date", name, i+1)
		}
		return date, nil
	default:
		return study.PartialDate{}, fmt.Errorf("%s: argument %d is not a date", name, i+1)
	}
}

func applyFunction(ctx context.Context, name string, args []any) (any, error) {
	switch name {
	case "TODAY":
		if err := argCount(name, args, 0); err != nil {
			return nil, err
		}
		return study.PartialDateOfTime(requestcontext.Now(ctx)), nil

	case "CREATE_DATE":
		if len(args) != 3 && len(args) != 6 {
			return nil, fmt.Errorf("%s expects 3 or 6 arguments, got %d", name, len(args))
		}
		parts := make([]int, len(args))
		for i := range args {
			n, err := numberArg(name, args, i)
			if err != nil {
				return nil, err
			}
			parts[i] = int(n)
		}
		date := study.PartialDateOf(parts[0], parts[1], parts[2])
		if len(parts) == 6 {
			date = study.NewPartialDate(&parts[0], &parts[1], &parts[2], &parts[3], &parts[4], &parts[5])
		}
		return date, nil

	case "ADD_YEARS", "ADD_MONTHS", "ADD_DAYS":
		if err := argCount(name, args, 2); err != nil {
			return nil, err
		}
		date, err := dateArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		amount, err := numberArg(name, args, 1)
		if err != nil {
			return nil, err
		}
		switch name {
		case "ADD_YEARS":
			return date.AddYears(int(amount)), nil
		case "ADD_MONTHS":
			return date.AddMonths(int(amount)), nil
		default:
			return date.AddDays(int(amount)), nil
		}

	case "DIFFERENCE_IN_YEARS", "DIFFERENCE_IN_DAYS":
		if err := argCount(name, args, 2); err != nil {
			return nil, err
		}
		d1, err := dateArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		d2, err := dateArg(name, args, 1)
		if err != nil {
			return nil, err
		}
		t1, t2 := d1.ToTime(), d2.ToTime()
		if name == "DIFFERENCE_IN_DAYS" {
			return float64(int(t1.Sub(t2).Hours() / 24)), nil
		}
		years := t1.Year() - t2.Year()
		// not yet a full year until the anniversary has passed
		if t1.AddDate(-years, 0, 0).Before(t2) {
			years--
		}
		return float64(years), nil

	case "IS_BLANK":
		if err := argCount(name, args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case nil:
			return true, nil
		case string:
			return strings.TrimSpace(v) == "", nil
		default:
			return false, nil
		}

	case "CONCAT":
		var b strings.Builder
		for _, arg := range args {
			switch v := arg.(type) {
			case nil:
			case string:
				b.WriteString(v)
			case float64:
				b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
			default:
				b.WriteString(fmt.Sprint(v))
			}
		}
		return b.String(), nil

	case "SUM", "MULTIPLY":
		if len(args) == 0 {
			return nil, fmt.Errorf("%s expects at least one argument", name)
		}
		total, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(args); i++ {
			n, err := numberArg(name, args, i)
			if err != nil {
				return nil, err
			}
			if name == "SUM" {
				total += n
			} else {
				total *= n
			}
		}
		return total, nil

	case "SUBTRACT":
		if err := argCount(name, args, 2); err != nil {
			return nil, err
		}
		a, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		b, err := numberArg(name, args, 1)
		if err != nil {
			return nil, err
		}
		return a - b, nil

	case "DIVIDE":
		if err := argCount(name, args, 2); err != nil {
			return nil, err
		}
		a, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		b, err := numberArg(name, args, 1)
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("%s: division by zero", name)
		}
		return a / b, nil

	default:
		return nil, fmt.Errorf("unknown function %s", name)
	}
}
