package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConstraint(t *testing.T) {
	cases := []struct {
		src  string
		want Expr
	}{
		{"id == 5", Binary{Op: OpEq, Left: Ref("id"), Right: IntLit(5)}},
		{"id != -3", Binary{Op: OpNeq, Left: Ref("id"), Right: IntLit(-3)}},
		{"buyer == #id", Binary{Op: OpEq, Left: Ref("buyer"), Right: OwnRef("id")}},
		{`name == "bob"`, Binary{Op: OpEq, Left: Ref("name"), Right: StrLit("bob")}},
		{"ok == true", Binary{Op: OpEq, Left: Ref("ok"), Right: BoolLit(true)}},
		{
			"a == 1 && b != 2",
			Binary{
				Op:    OpAnd,
				Left:  Binary{Op: OpEq, Left: Ref("a"), Right: IntLit(1)},
				Right: Binary{Op: OpNeq, Left: Ref("b"), Right: IntLit(2)},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			got, err := ParseConstraint(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseConstraint_Errors(t *testing.T) {
	for _, src := range []string{"", "id ==", "== 5", `name == "open`, "a == 1 &&", "id == 5 extra"} {
		t.Run(src, func(t *testing.T) {
			_, err := ParseConstraint(src)
			assert.Error(t, err)
		})
	}
}

func TestConjuncts_FlattensNestedAnd(t *testing.T) {
	e, err := ParseConstraint("a == 1 && b == 2 && c == 3")
	require.NoError(t, err)

	parts := Conjuncts(e)
	require.Len(t, parts, 3)
	assert.Equal(t, Binary{Op: OpEq, Left: Ref("a"), Right: IntLit(1)}, parts[0])
	assert.Equal(t, Binary{Op: OpEq, Left: Ref("c"), Right: IntLit(3)}, parts[2])
}

func TestFormatExpr_InvertsParse(t *testing.T) {
	for _, src := range []string{
		"id == 5",
		`name != "bob"`,
		"buyer == #id && tier == 2",
	} {
		t.Run(src, func(t *testing.T) {
			e, err := ParseConstraint(src)
			require.NoError(t, err)
			assert.Equal(t, src, FormatExpr(e))
		})
	}
}

func TestExprJSON_RoundTrip(t *testing.T) {
	exprs := []Expr{
		IntLit(42),
		StrLit("x"),
		BoolLit(false),
		Ref("id"),
		OwnRef("id"),
		Binary{Op: OpAnd,
			Left:  Binary{Op: OpEq, Left: Ref("a"), Right: IntLit(1)},
			Right: Binary{Op: OpNeq, Left: Ref("b"), Right: OwnRef("c")},
		},
	}
	for _, e := range exprs {
		data, err := EncodeExpr(e)
		require.NoError(t, err)
		got, err := DecodeExpr(data)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestDecodeExpr_UnknownTag(t *testing.T) {
	_, err := DecodeExpr([]byte(`{"tag":"float","value":1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tag")
}
