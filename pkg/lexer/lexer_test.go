package lexer

import "testing"

func TestNext_BasicTokens(t *testing.T) {
	input := `( ) { } , . - + ; / * % ? :`

	tests := []TokenType{
		TokenLeftParen, TokenRightParen, TokenLeftBrace, TokenRightBrace,
		TokenComma, TokenDot, TokenMinus, TokenPlus, TokenSemicolon,
		TokenSlash, TokenStar, TokenPercent, TokenQuestion, TokenColon,
		TokenEOF,
	}

	lx := New(input)
	for i, want := range tests {
		tok := lx.Next()
		if tok.Type != want {
			t.Fatalf("tests[%d]: type wrong. expected=%v, got=%v (lexeme %q)", i, want, tok.Type, tok.Lexeme)
		}
	}
}

func TestNext_TwoCharOperators(t *testing.T) {
	input := "! != = == < <= > >="
	tests := []TokenType{
		TokenBang, TokenBangEqual, TokenEqual, TokenEqualEqual,
		TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual,
		TokenEOF,
	}

	lx := New(input)
	for i, want := range tests {
		tok := lx.Next()
		if tok.Type != want {
			t.Fatalf("tests[%d]: type wrong. expected=%v, got=%v", i, want, tok.Type)
		}
	}
}

func TestNext_Keywords(t *testing.T) {
	input := "and class else false default for fun if nil or print return super this continue true var while case switch"
	tests := []TokenType{
		TokenAnd, TokenClass, TokenElse, TokenFalse, TokenDefault, TokenFor,
		TokenFun, TokenIf, TokenNil, TokenOr, TokenPrint, TokenReturn,
		TokenSuper, TokenThis, TokenContinue, TokenTrue, TokenVar, TokenWhile,
		TokenCase, TokenSwitch, TokenEOF,
	}

	lx := New(input)
	for i, want := range tests {
		tok := lx.Next()
		if tok.Type != want {
			t.Fatalf("tests[%d]: type wrong. expected=%v, got=%v (lexeme %q)", i, want, tok.Type, tok.Lexeme)
		}
	}
}

func TestNext_IdentifierNotKeyword(t *testing.T) {
	tok := New("classify").Next()
	if tok.Type != TokenIdentifier {
		t.Fatalf("expected identifier, got %v", tok.Type)
	}
	if tok.Lexeme != "classify" {
		t.Fatalf("expected lexeme 'classify', got %q", tok.Lexeme)
	}
}

func TestNext_Numbers(t *testing.T) {
	tests := []string{"42", "3.14", "0", "1000.5"}
	for _, src := range tests {
		tok := New(src).Next()
		if tok.Type != TokenNumber {
			t.Errorf("%q: expected NUMBER, got %v", src, tok.Type)
		}
		if tok.Lexeme != src {
			t.Errorf("%q: expected lexeme %q, got %q", src, src, tok.Lexeme)
		}
	}
}

func TestNext_String(t *testing.T) {
	tok := New(`"hello world"`).Next()
	if tok.Type != TokenString {
		t.Fatalf("expected STRING, got %v", tok.Type)
	}
	if tok.Lexeme != `"hello world"` {
		t.Fatalf("unexpected lexeme %q", tok.Lexeme)
	}
}

func TestNext_UnterminatedString(t *testing.T) {
	tok := New(`"never closes`).Next()
	if tok.Type != TokenError {
		t.Fatalf("expected ERROR, got %v", tok.Type)
	}
}

func TestNext_EscapedQuoteInString(t *testing.T) {
	tok := New(`"she said \"hi\""`).Next()
	if tok.Type != TokenString {
		t.Fatalf("expected STRING, got %v (%q)", tok.Type, tok.Lexeme)
	}
}

func TestNext_SkipsLineAndBlockComments(t *testing.T) {
	input := "// a line comment\n/* a block\ncomment */ 7"
	tok := New(input).Next()
	if tok.Type != TokenNumber || tok.Lexeme != "7" {
		t.Fatalf("expected NUMBER 7 after comments, got %v %q", tok.Type, tok.Lexeme)
	}
}

func TestNext_TracksLineNumbers(t *testing.T) {
	lx := New("1\n2\n3")
	var lines []int
	for {
		tok := lx.Next()
		if tok.Type == TokenEOF {
			break
		}
		lines = append(lines, tok.Line)
	}
	want := []int{1, 2, 3}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("token %d: expected line %d, got %d", i, w, lines[i])
		}
	}
}

func TestNext_UnexpectedCharacter(t *testing.T) {
	tok := New("@").Next()
	if tok.Type != TokenError {
		t.Fatalf("expected ERROR, got %v", tok.Type)
	}
}
