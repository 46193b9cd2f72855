package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func FeedDocumentKey(tenantID uuid.UUID, provider string) string {
	return fmt.Sprintf("feed:%s:%s", tenantID, provider)
}
