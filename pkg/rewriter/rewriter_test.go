package rewriter

import (
	"os"
	"reflect"
	"testing"

	"fieldwatch-agent/pkg/catalog"
	"fieldwatch-agent/pkg/watched"
)

func TestPrepare_ClassifiesListSetMapGeneric(t *testing.T) {
	reg := NewRegistry(catalog.New())
	cases := []struct {
		name string
		typ  reflect.Type
		want Kind
	}{
		{"list", reflect.TypeOf(watched.List[int]{}), KindList},
		{"set", reflect.TypeOf(watched.Set[int]{}), KindSet},
		{"map", reflect.TypeOf(watched.Map[string, int]{}), KindMap},
		{"generic", reflect.TypeOf(watched.Generic{}), KindGeneric},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := reg.Prepare(c.typ)
			if d.Kind != c.want {
				t.Fatalf("expected kind %q, got %q", c.want, d.Kind)
			}
		})
	}
}

func TestPrepare_IsIdempotent(t *testing.T) {
	cat := catalog.New()
	reg := NewRegistry(cat)
	typ := reflect.TypeOf(watched.List[string]{})
	first := reg.Prepare(typ)
	if !cat.Processed(first.TypeName) {
		t.Fatalf("expected Prepare to mark the type processed")
	}
	second := reg.Prepare(typ)
	if first.TypeName != second.TypeName || first.Kind != second.Kind {
		t.Fatalf("expected cached descriptor on repeat Prepare, got %+v vs %+v", first, second)
	}
}

func TestPrepare_ListMethodsMatchKnownMethodsTable(t *testing.T) {
	reg := NewRegistry(catalog.New())
	d := reg.Prepare(reflect.TypeOf(watched.List[int]{}))
	if d.Methods["Add"] != catalog.Documented {
		t.Fatalf("expected Add classified Documented, got %v", d.Methods["Add"])
	}
	if d.Methods["AddAll"] != catalog.Replaceable {
		t.Fatalf("expected AddAll classified Replaceable, got %v", d.Methods["AddAll"])
	}
	if d.Methods["Len"] != catalog.Immutable {
		t.Fatalf("expected Len classified Immutable, got %v", d.Methods["Len"])
	}
}

func TestDumpDescriptor_WritesSnappyCompressedFile(t *testing.T) {
	dir := t.TempDir()
	d := Descriptor{TypeName: "fieldwatch-agent/pkg/watched.List", Kind: KindList, Methods: map[string]catalog.Kind{"Add": catalog.Documented}}
	path, err := DumpDescriptor(dir, d)
	if err != nil {
		t.Fatalf("DumpDescriptor: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected dump file to exist: %v", err)
	}
}
