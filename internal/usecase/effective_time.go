package usecase

import "time"

const DefaultMaxClockSkew = 60 * time.Second

// effectiveTime trusts a client timestamp only inside the skew window around
// the server clock.
func effectiveTime(serverNow time.Time, clientTimeMS *int64, maxSkew time.Duration) time.Time {
	serverNow = serverNow.UTC()
	if clientTimeMS == nil || *clientTimeMS <= 0 {
		return serverNow
	}
	if maxSkew <= 0 {
		maxSkew = DefaultMaxClockSkew
	}
	client := time.UnixMilli(*clientTimeMS).UTC()
	if client.Before(serverNow.Add(-maxSkew)) || client.After(serverNow.Add(maxSkew)) {
		return serverNow
	}
	return client
}
