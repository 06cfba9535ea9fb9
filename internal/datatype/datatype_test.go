package datatype

import (
	"testing"

	"github.com/lyzr/flowr/internal/route"
)

func TestIsArrayAndOrder(t *testing.T) {
	if !DataType("array/number").IsArray() {
		t.Fatalf("expected array")
	}
	if DataType("array/array/number").TypeArrayOrder() != 2 {
		t.Fatalf("expected order 2")
	}
	if DataType("number").TypeArrayOrder() != 0 {
		t.Fatalf("expected order 0")
	}
}

func TestValueArrayOrder(t *testing.T) {
	if ValueArrayOrder(float64(1)) != 0 {
		t.Fatalf("expected 0")
	}
	if ValueArrayOrder([]interface{}{float64(1), float64(2)}) != 1 {
		t.Fatalf("expected 1")
	}
	if ValueArrayOrder([]interface{}{[]interface{}{float64(1)}}) != 2 {
		t.Fatalf("expected 2")
	}
}

func TestCompatibleEqual(t *testing.T) {
	err := Compatible([]DataType{Number}, []DataType{Number}, route.Empty)
	if err != nil {
		t.Fatalf("expected compatible, got %v", err)
	}
}

func TestCompatibleGeneric(t *testing.T) {
	if err := Compatible([]DataType{Generic}, []DataType{Number}, route.Empty); err != nil {
		t.Fatalf("generic source should be compatible: %v", err)
	}
	if err := Compatible([]DataType{Number}, []DataType{Generic}, route.Empty); err != nil {
		t.Fatalf("generic destination should be compatible: %v", err)
	}
}

func TestCompatibleSerialization(t *testing.T) {
	// fA outputs array/number; destination expects scalar number (scenario 3).
	if err := Compatible([]DataType{"array/number"}, []DataType{Number}, route.Empty); err != nil {
		t.Fatalf("expected serialization compatibility: %v", err)
	}
}

func TestCompatibleWrapping(t *testing.T) {
	// fA outputs number 7; destination expects array/number (scenario 4).
	if err := Compatible([]DataType{Number}, []DataType{"array/number"}, route.Empty); err != nil {
		t.Fatalf("expected wrapping compatibility: %v", err)
	}
}

func TestCompatibleDoubleOrder(t *testing.T) {
	if err := Compatible([]DataType{"array/array/number"}, []DataType{Number}, route.Empty); err != nil {
		t.Fatalf("expected +2 serialization: %v", err)
	}
	if err := Compatible([]DataType{Number}, []DataType{"array/array/number"}, route.Empty); err != nil {
		t.Fatalf("expected -2 wrapping: %v", err)
	}
}

func TestIncompatibleBeyondTwo(t *testing.T) {
	err := Compatible([]DataType{"array/array/array/number"}, []DataType{Number}, route.Empty)
	if err == nil {
		t.Fatalf("expected incompatibility for |delta| > 2")
	}
}

func TestIncompatibleDifferentScalars(t *testing.T) {
	err := Compatible([]DataType{String}, []DataType{Number}, route.Empty)
	if err == nil {
		t.Fatalf("expected incompatible types")
	}
}

func TestSubRouteDeeperThanDeclaredType(t *testing.T) {
	// "number" has a single type segment; a two-level-deep sub-route has
	// nothing left to strip and the connection must fail per §4.1.
	err := Compatible([]DataType{Number}, []DataType{Number}, route.New("/0/1"))
	if err == nil {
		t.Fatalf("expected failure: sub-route deeper than declared type segments")
	}
}

func TestSubRouteExhaustingTypeYieldsGeneric(t *testing.T) {
	// Dropping exactly as many segments as the type has leaves "generic",
	// which is compatible with anything.
	err := Compatible([]DataType{Number}, []DataType{String}, route.New("/0"))
	if err != nil {
		t.Fatalf("expected exhausted sub-route to behave as generic: %v", err)
	}
}

func TestSubRouteOnArrayType(t *testing.T) {
	// source declared as array/number, selecting one level in (an element)
	// yields "number", compatible with a "number" destination.
	err := Compatible([]DataType{"array/number"}, []DataType{Number}, route.New("/0"))
	if err != nil {
		t.Fatalf("expected compatible after sub-route strip: %v", err)
	}
}

func TestGenericArrayElementEscapeHatch(t *testing.T) {
	// source is array/<generic>, destination is array/number: the escape
	// hatch in §4.1 trusts the runtime to serialize correctly.
	if err := Compatible([]DataType{"array/"}, []DataType{"array/number"}, route.Empty); err != nil {
		t.Fatalf("expected escape hatch to allow generic array element: %v", err)
	}
}
