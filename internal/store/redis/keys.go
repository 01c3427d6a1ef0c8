// Package redis implements the Coordination Store (spec.md §4.B): the
// ephemeral, TTL-backed state for sale-status caching, per-user rate
// limiting, and job/user purchase state. It is the sole backing store for
// everything the Durable Store does not own.
package redis

import "fmt"

const (
	keyPurchaseJob    = "purchase_job:"
	keyPurchaseStatus = "purchase_status:"
	keySaleStatus     = "flash_sale_status"
	keySaleStatusSale = "flash_sale_status_"
	keyStats          = "sale_stats:"
	keyRateLimit      = "rate_limit:"
)

func purchaseJobKey(jobID string) string    { return keyPurchaseJob + jobID }
func purchaseStatusKey(userID string) string { return keyPurchaseStatus + userID }
func statsKey(saleID string) string          { return keyStats + saleID }
func rateLimitKey(userID string) string      { return keyRateLimit + userID }

func saleStatusKey(saleID string) string {
	if saleID == "" {
		return keySaleStatus
	}
	return fmt.Sprintf("%s%s", keySaleStatusSale, saleID)
}
