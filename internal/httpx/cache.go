package httpx

import (
	"context"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

// SummaryCache is the order summary cache the handlers read through.
// *redisx.SummaryCache implements it.
type SummaryCache interface {
	Get(ctx context.Context, orderID string) (orders.Summary, bool)
	Set(ctx context.Context, s orders.Summary)
	Invalidate(ctx context.Context, orderID string)
}

type noCache struct{}

func (noCache) Get(context.Context, string) (orders.Summary, bool) { return orders.Summary{}, false }
func (noCache) Set(context.Context, orders.Summary)                {}
func (noCache) Invalidate(context.Context, string)                 {}

func cacheOr(c SummaryCache) SummaryCache {
	if c == nil {
		return noCache{}
	}
	return c
}
