package compiler

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteTokensXML(t *testing.T) {
	var buf bytes.Buffer
	src := `class Main { // entry
    function void main() { let a = x < 1 & "q"; }
}`
	if err := WriteTokensXML(&buf, src); err != nil {
		t.Fatalf("WriteTokensXML: %v", err)
	}
	want := `<tokens>
<keyword> class </keyword>
<identifier> Main </identifier>
<symbol> { </symbol>
<keyword> function </keyword>
<keyword> void </keyword>
<identifier> main </identifier>
<symbol> ( </symbol>
<symbol> ) </symbol>
<symbol> { </symbol>
<keyword> let </keyword>
<identifier> a </identifier>
<symbol> = </symbol>
<identifier> x </identifier>
<symbol> &lt; </symbol>
<integerConstant> 1 </integerConstant>
<symbol> &amp; </symbol>
<stringConstant> q </stringConstant>
<symbol> ; </symbol>
<symbol> } </symbol>
<symbol> } </symbol>
</tokens>
`
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteTokensXMLError(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTokensXML(&buf, "class $")
	if !errors.Is(err, ErrLexical) {
		t.Errorf("error = %v, want ErrLexical", err)
	}
	if buf.Len() != 0 {
		t.Errorf("output written on failure: %q", buf.String())
	}
}

func TestWriteParseTreeXML(t *testing.T) {
	var buf bytes.Buffer
	src := `class P {
    field int x;
    method int f(int d) {
        var int y;
        let y = -d;
        while (y < x) { do g(y); }
        return "s";
    }
}`
	if err := WriteParseTreeXML(&buf, src); err != nil {
		t.Fatalf("WriteParseTreeXML: %v", err)
	}
	want := `<class>
  <keyword> class </keyword>
  <identifier> P </identifier>
  <symbol> { </symbol>
  <classVarDec>
    <keyword> field </keyword>
    <keyword> int </keyword>
    <identifier> x </identifier>
    <symbol> ; </symbol>
  </classVarDec>
  <subroutineDec>
    <keyword> method </keyword>
    <keyword> int </keyword>
    <identifier> f </identifier>
    <symbol> ( </symbol>
    <parameterList>
      <keyword> int </keyword>
      <identifier> d </identifier>
    </parameterList>
    <symbol> ) </symbol>
    <subroutineBody>
      <symbol> { </symbol>
      <varDec>
        <keyword> var </keyword>
        <keyword> int </keyword>
        <identifier> y </identifier>
        <symbol> ; </symbol>
      </varDec>
      <statements>
        <letStatement>
          <keyword> let </keyword>
          <identifier> y </identifier>
          <symbol> = </symbol>
          <expression>
            <term>
              <symbol> - </symbol>
              <term>
                <identifier> d </identifier>
              </term>
            </term>
          </expression>
          <symbol> ; </symbol>
        </letStatement>
        <whileStatement>
          <keyword> while </keyword>
          <symbol> ( </symbol>
          <expression>
            <term>
              <identifier> y </identifier>
            </term>
            <symbol> &lt; </symbol>
            <term>
              <identifier> x </identifier>
            </term>
          </expression>
          <symbol> ) </symbol>
          <symbol> { </symbol>
          <statements>
            <doStatement>
              <keyword> do </keyword>
              <identifier> g </identifier>
              <symbol> ( </symbol>
              <expressionList>
                <expression>
                  <term>
                    <identifier> y </identifier>
                  </term>
                </expression>
              </expressionList>
              <symbol> ) </symbol>
              <symbol> ; </symbol>
            </doStatement>
          </statements>
          <symbol> } </symbol>
        </whileStatement>
        <returnStatement>
          <keyword> return </keyword>
          <expression>
            <term>
              <stringConstant> s </stringConstant>
            </term>
          </expression>
          <symbol> ; </symbol>
        </returnStatement>
      </statements>
      <symbol> } </symbol>
    </subroutineBody>
  </subroutineDec>
  <symbol> } </symbol>
</class>
`
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteParseTreeXMLEmptyLists(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteParseTreeXML(&buf, "class E { function void f() { return; } }"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"    <parameterList>\n    </parameterList>\n",
		"      <statements>\n        <returnStatement>\n",
		"          <keyword> return </keyword>\n          <symbol> ; </symbol>\n",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("tree missing %q:\n%s", want, buf.String())
		}
	}
}

func TestWriteParseTreeXMLError(t *testing.T) {
	var buf bytes.Buffer
	err := WriteParseTreeXML(&buf, "class A { function void f() { return } }")
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("error = %v, want ErrSyntax", err)
	}
	if buf.Len() != 0 {
		t.Errorf("output written on failure: %q", buf.String())
	}
}
