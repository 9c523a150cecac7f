package ports

import "github.com/atvirokodosprendimai/stripekeys/internal/core/domain"

type APIKeyMetrics interface {
	RecordCreated(keyType domain.APIKeyType, livemode bool)
	RecordLookup(result string)
	RecordRejected(reason string)
}
