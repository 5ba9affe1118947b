package telegram

import (
	"fmt"
	"time"
)

// FormatErrorAlertMessage renders an operational failure alert.
func FormatErrorAlertMessage(at time.Time, detail string) string {
	return fmt.Sprintf("🚨 <b>Signal Worker Alert</b>\n<b>Time:</b> %s\n<b>Detail:</b> %s",
		at.Format("2006-01-02 15:04:05 MST"), detail)
}
