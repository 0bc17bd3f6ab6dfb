/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"fmt"

	"github.com/acronis/go-throttledbucket/log"
)

func Example() {
	admit := func(item string, remaining int, logger log.FieldLogger) {
		logger.Info("item admitted", log.String("item", item), log.Int("remaining", remaining))
	}

	logRecorder := NewRecorder()
	admit("job-1", 4, logRecorder)

	if logEntry, found := logRecorder.FindEntry("item admitted"); found {
		fmt.Printf("[%s] %s\n", logEntry.Level, logEntry.Text)
		if field, found := logEntry.FindField("remaining"); found {
			fmt.Printf("remaining: %d\n", field.Int)
		}
		if field, found := logEntry.FindField("item"); found {
			fmt.Printf("item: %s\n", field.Bytes)
		}
	}

	// Output:
	// [info] item admitted
	// remaining: 4
	// item: job-1
}
