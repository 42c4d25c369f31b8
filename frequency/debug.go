package frequency

import "fmt"

func fmtDebug(lgMaxMapSize, lgCurMapSize, numActive int, streamLength, offset, mergeError int64) string {
	return fmt.Sprintf(
		"ItemsSketch: lgMaxMapSize=%d lgCurMapSize=%d numActive=%d streamLength=%d offset=%d mergeError=%d",
		lgMaxMapSize, lgCurMapSize, numActive, streamLength, offset, mergeError,
	)
}
