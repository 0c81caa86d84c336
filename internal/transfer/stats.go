package transfer

import (
	"time"

	"github.com/stlalpha/impulse-bbs/internal/user"
)

// ResetDailyIfNeeded zeroes u's "today" counters the first time it's
// touched on a calendar day different from its LastTransferDate. Callers
// invoke this before reading or updating today counters so quota checks
// never compare against a stale day's totals.
func ResetDailyIfNeeded(u *user.User, now time.Time) {
	if sameDay(u.LastTransferDate, now) {
		return
	}
	u.UploadedBytesToday = 0
	u.DownloadedBytesToday = 0
	u.UploadedFilesToday = 0
	u.DownloadedFilesToday = 0
	u.LastTransferDate = now
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// recordUpload updates u's total and today counters after a committed
// upload. Callers must have called ResetDailyIfNeeded first.
func recordUpload(u *user.User, size int64, now time.Time) {
	u.UploadedBytesTotal += uint64(size)
	u.UploadedFilesTotal++
	u.UploadedBytesToday += uint64(size)
	u.UploadedFilesToday++
	u.LastTransferDate = now
}

// recordDownload updates u's total and today counters after a completed
// download. Callers must have called ResetDailyIfNeeded first.
func recordDownload(u *user.User, size int64, now time.Time) {
	u.DownloadedBytesTotal += uint64(size)
	u.DownloadedFilesTotal++
	u.DownloadedBytesToday += uint64(size)
	u.DownloadedFilesToday++
	u.LastTransferDate = now
}
