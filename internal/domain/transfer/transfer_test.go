package transfer

import "testing"

func TestBudgetTransfer_TotalAmount(t *testing.T) {
	bt := BudgetTransfer{
		Lines: []Line{
			{FromAmount: 100.50},
			{FromAmount: 250.25},
			{FromAmount: 0},
		},
	}
	if got, want := bt.TotalAmount(), 350.75; got != want {
		t.Errorf("TotalAmount() = %v, want %v", got, want)
	}
}

func TestBudgetTransfer_TotalAmount_NoLines(t *testing.T) {
	bt := BudgetTransfer{}
	if got := bt.TotalAmount(); got != 0 {
		t.Errorf("TotalAmount() = %v, want 0", got)
	}
}

func TestBudgetTransfer_IsHoldRelease(t *testing.T) {
	parent := "tx-parent-1"
	empty := ""

	cases := []struct {
		name string
		bt   BudgetTransfer
		want bool
	}{
		{"nil link", BudgetTransfer{LinkedTransferID: nil}, false},
		{"empty link", BudgetTransfer{LinkedTransferID: &empty}, false},
		{"populated link", BudgetTransfer{LinkedTransferID: &parent}, true},
	}
	for _, c := range cases {
		if got := c.bt.IsHoldRelease(); got != c.want {
			t.Errorf("%s: IsHoldRelease() = %v, want %v", c.name, got, c.want)
		}
	}
}
