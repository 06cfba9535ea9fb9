package value

import (
	"testing"

	"github.com/lyzr/flowr/internal/route"
)

func TestPointerSimple(t *testing.T) {
	v, err := FromJSON([]byte(`{"a":{"b":[10,20,30]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, ok := v.Pointer(route.New("/a/b/0"))
	if !ok {
		t.Fatalf("expected pointer hit")
	}
	if got.Raw() != float64(10) {
		t.Fatalf("got %v", got.Raw())
	}
}

func TestPointerMiss(t *testing.T) {
	v, _ := FromJSON([]byte(`{"a":1}`))
	_, ok := v.Pointer(route.New("/a/b/0"))
	if ok {
		t.Fatalf("expected pointer miss")
	}
}

func TestPointerEmptyRoute(t *testing.T) {
	v, _ := FromJSON([]byte(`{"a":1}`))
	got, ok := v.Pointer(route.Empty)
	if !ok {
		t.Fatalf("expected empty route to return v itself")
	}
	m, ok := got.Raw().(map[string]interface{})
	if !ok || m["a"] != float64(1) {
		t.Fatalf("got %v", got.Raw())
	}
}

func TestAsArray(t *testing.T) {
	v, _ := FromJSON([]byte(`[1,2,3]`))
	elems, ok := v.AsArray()
	if !ok || len(elems) != 3 {
		t.Fatalf("got ok=%v elems=%v", ok, elems)
	}
	if elems[1].Raw() != float64(2) {
		t.Fatalf("got %v", elems[1].Raw())
	}
}

func TestNewArrayAndNewObject(t *testing.T) {
	arr := NewArray(Of(float64(1)), Of(float64(2)))
	elems, ok := arr.AsArray()
	if !ok || len(elems) != 2 {
		t.Fatalf("got %v", arr.Raw())
	}

	obj := NewObject(map[string]Value{"x": Of(float64(7))})
	m, ok := obj.Raw().(map[string]interface{})
	if !ok || m["x"] != float64(7) {
		t.Fatalf("got %v", obj.Raw())
	}
}

func TestWithPointer(t *testing.T) {
	v, _ := FromJSON([]byte(`{"a":{}}`))
	updated, err := v.WithPointer(route.New("/a/b"), Of(float64(5)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := updated.Pointer(route.New("/a/b"))
	if !ok || got.Raw() != float64(5) {
		t.Fatalf("got %v", got.Raw())
	}
}
