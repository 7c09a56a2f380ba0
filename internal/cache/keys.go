package cache

import "fmt"

func RecordKey(fingerprint string) string {
	return fmt.Sprintf("record:%s", fingerprint)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
