package redis

import "testing"

func TestSaleStatusKey(t *testing.T) {
	cases := []struct {
		saleID string
		want   string
	}{
		{"", "flash_sale_status"},
		{"sale-1", "flash_sale_status_sale-1"},
	}
	for _, c := range cases {
		if got := saleStatusKey(c.saleID); got != c.want {
			t.Errorf("saleStatusKey(%q) = %q, want %q", c.saleID, got, c.want)
		}
	}
}

func TestPurchaseJobKey(t *testing.T) {
	if got, want := purchaseJobKey("job-1"), "purchase_job:job-1"; got != want {
		t.Errorf("purchaseJobKey = %q, want %q", got, want)
	}
}

func TestPurchaseStatusKey(t *testing.T) {
	if got, want := purchaseStatusKey("user-1"), "purchase_status:user-1"; got != want {
		t.Errorf("purchaseStatusKey = %q, want %q", got, want)
	}
}

func TestStatsKey(t *testing.T) {
	if got, want := statsKey("sale-1"), "sale_stats:sale-1"; got != want {
		t.Errorf("statsKey = %q, want %q", got, want)
	}
}

func TestRateLimitKey(t *testing.T) {
	if got, want := rateLimitKey("user-1"), "rate_limit:user-1"; got != want {
		t.Errorf("rateLimitKey = %q, want %q", got, want)
	}
}
