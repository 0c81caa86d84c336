package transfer

import "testing"

func TestRollbackManagerRunsCleanupsInReverseOrder(t *testing.T) {
	var order []int
	rb := NewRollbackManager()
	rb.Add(func() { order = append(order, 1) })
	rb.Add(func() { order = append(order, 2) })
	rb.Add(func() { order = append(order, 3) })

	rb.Run()

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRollbackManagerSuccessDisarms(t *testing.T) {
	ran := false
	rb := NewRollbackManager()
	rb.Add(func() { ran = true })

	rb.Success()
	rb.Run()

	if ran {
		t.Error("expected cleanup not to run after Success")
	}
}
