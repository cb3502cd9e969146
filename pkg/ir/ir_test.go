package ir_test

import (
	"testing"

	"github.com/duarten/cornucopia/pkg/ir"
)

func TestModuleReferences(t *testing.T) {
	m := &ir.Module{
		Name:   "books",
		Rows:   []ir.Item{{Name: "Author"}},
		Params: []ir.Item{{Name: "InsertBookParams"}},
	}

	t.Run("resolves valid references", func(t *testing.T) {
		q := &ir.Query{Name: "q", Row: &ir.RowRef{Index: 0}, Param: &ir.ParamRef{Index: 0}}
		row, err := m.Row(q)
		if err != nil || row == nil || row.Name != "Author" {
			t.Errorf("Row() = %v, %v", row, err)
		}
		param, err := m.Param(q)
		if err != nil || param == nil || param.Name != "InsertBookParams" {
			t.Errorf("Param() = %v, %v", param, err)
		}
	})

	t.Run("nil references resolve to nothing", func(t *testing.T) {
		q := &ir.Query{Name: "exec_only"}
		if row, err := m.Row(q); row != nil || err != nil {
			t.Errorf("Row() = %v, %v", row, err)
		}
		if param, err := m.Param(q); param != nil || err != nil {
			t.Errorf("Param() = %v, %v", param, err)
		}
	})

	t.Run("dangling references error", func(t *testing.T) {
		q := &ir.Query{Name: "q", Row: &ir.RowRef{Index: 1}, Param: &ir.ParamRef{Index: -1}}
		if _, err := m.Row(q); err == nil {
			t.Error("Row() should reject an out-of-range index")
		}
		if _, err := m.Param(q); err == nil {
			t.Error("Param() should reject a negative index")
		}
	})
}

func TestTypeOf(t *testing.T) {
	enum := &ir.CustomType{PgName: "mood", Variants: []string{"happy"}}
	comp := &ir.CustomType{PgName: "pair", Fields: []ir.Field{{Name: "a", Type: ir.TypeInt4}}}

	if ty := ir.TypeOf(enum); ty.Kind != ir.KindEnum || ty.PgName != "mood" {
		t.Errorf("TypeOf(enum) = %+v", ty)
	}
	if ty := ir.TypeOf(comp); ty.Kind != ir.KindComposite {
		t.Errorf("TypeOf(composite) = %+v", ty)
	}
	if !enum.IsEnum() || comp.IsEnum() {
		t.Error("IsEnum misclassifies")
	}
}

func TestArrayOf(t *testing.T) {
	arr := ir.ArrayOf(ir.TypeText)
	if arr.Kind != ir.KindArray || arr.PgName != "_text" || arr.Elem != ir.TypeText {
		t.Errorf("ArrayOf = %+v", arr)
	}
}

func TestIsCopy(t *testing.T) {
	copies := []*ir.Type{ir.TypeBool, ir.TypeInt8, ir.TypeUUID, ir.TypeDate}
	for _, ty := range copies {
		if !ty.IsCopy() {
			t.Errorf("%s should be copy", ty.PgName)
		}
	}
	borrows := []*ir.Type{ir.TypeText, ir.TypeBytea, ir.TypeJSON, ir.ArrayOf(ir.TypeInt4)}
	for _, ty := range borrows {
		if ty.IsCopy() {
			t.Errorf("%s should not be copy", ty.PgName)
		}
	}
	if !ir.TypeOf(&ir.CustomType{PgName: "p", IsCopy: true, Fields: []ir.Field{{}}}).IsCopy() {
		t.Error("copy composite should be copy")
	}
}
