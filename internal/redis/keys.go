package redisx

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "screenbook:v1"

func KeyScreeningSummary(id uuid.UUID) string {
	return fmt.Sprintf("%s:screening:%s:summary", ns, id)
}

func KeyScreeningAvailability(id uuid.UUID) string {
	return fmt.Sprintf("%s:screening:%s:availability", ns, id)
}

func KeyScreeningSeatMap(id uuid.UUID) string {
	return fmt.Sprintf("%s:screening:%s:seatmap", ns, id)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelScreeningsChanged() string {
	return ns + ":screenings:changed"
}
