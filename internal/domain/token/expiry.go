package token

import "time"

// IsExpired reports whether a token issued at issuedAt is past the configured
// registration window. Future (clock-skewed) timestamps yield a negative age
// and are treated as not expired; skew is not corrected for. An unparseable
// issuedAt is treated as expired.
func IsExpired(issuedAt string, maxAgeHours int) bool {
	return expiredAt(issuedAt, maxAgeHours, time.Now())
}

func expiredAt(issuedAt string, maxAgeHours int, now time.Time) bool {
	t, err := time.Parse(time.RFC3339, issuedAt)
	if err != nil {
		return true
	}
	return now.Sub(t) > time.Duration(maxAgeHours)*time.Hour
}
