package cart

import "strings"

// Coupon codes are static reference data: flat percentage off the
// subtotal. At most one coupon applies to a cart at a time.
var coupons = map[string]int64{
	"URIEL10":    10,
	"URIEL20":    20,
	"DESCONTO50": 50,
}

// CouponPercent normalizes a code (trim, uppercase) and looks it up.
func CouponPercent(code string) (int64, bool) {
	pct, ok := coupons[strings.ToUpper(strings.TrimSpace(code))]
	return pct, ok
}
