package transfer

import "math"

// Ratio computes downloaded/uploaded: both operands are u64 byte counts
// upcast to f64 before division. A user who
// has downloaded but never uploaded has an infinite ratio; a user who has
// done neither has a ratio of exactly 1.0.
func Ratio(downloadedBytes, uploadedBytes uint64) float64 {
	if uploadedBytes == 0 {
		if downloadedBytes == 0 {
			return 1.0
		}
		return math.Inf(1)
	}
	return float64(downloadedBytes) / float64(uploadedBytes)
}

// CanDownload reports whether downloading an additional `size` bytes
// keeps the user's projected ratio at or under maxRatio. Users who have
// uploaded nothing get a grace allowance of gracePeriodBytes cumulative
// download before ratio enforcement engages at all.
func CanDownload(downloadedBytes, uploadedBytes uint64, size int64, maxRatio float64) bool {
	if uploadedBytes == 0 && downloadedBytes+uint64(size) <= gracePeriodBytes {
		return true
	}
	projected := Ratio(downloadedBytes+uint64(size), uploadedBytes)
	return projected <= maxRatio
}
