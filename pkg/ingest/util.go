package ingest

import (
	"encoding/json"
	"time"
)

func marshalMetadata(m map[string]any) ([]byte, error) {
	return json.Marshal(m)
}

func defaultNowMillis() int64 {
	return time.Now().UnixMilli()
}

func unixMillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
