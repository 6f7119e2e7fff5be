package main

import (
	"context"
	"time"
)

// minSaneEpoch: hodiny před 2001-09-09 bereme jako nenastavené (RTC bez NTP).
const minSaneEpoch = 1_000_000_000

// waitForClock čeká, dokud systémový čas nevypadá rozumně, nejdéle maxWait.
// Vrací false, pokud se čas nesrovnal. Při rozumných hodinách se vrací hned.
func waitForClock(ctx context.Context, maxWait, poll time.Duration, now func() time.Time) bool {
	if now().Unix() > minSaneEpoch {
		return true
	}
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return now().Unix() > minSaneEpoch
		case <-ticker.C:
			if now().Unix() > minSaneEpoch {
				return true
			}
		}
	}
}
