package sysmem

import "testing"

func TestAvailableMBReturnsPositiveValue(t *testing.T) {
	mb, err := AvailableMB()
	if err != nil {
		t.Fatal(err)
	}
	if mb <= 0 {
		t.Errorf("AvailableMB() = %d, want > 0", mb)
	}
}
