package playsync

// EstimatePosition converts a snapshot into "where the host is right
// now". A playing host keeps advancing while the report is in flight,
// so the elapsed wall time is added back; a paused position does not
// move regardless of delay. Skipping the paused branch causes permanent
// overshoot on paused content.
//
// Elapsed time is clamped at zero: a sender clock slightly ahead of
// ours must not rewind the estimate.
func EstimatePosition(s Snapshot, nowMs int64) float64 {
	if !s.Playing {
		return s.Position
	}
	elapsed := nowMs - s.CapturedAtMs
	if elapsed < 0 {
		elapsed = 0
	}
	return s.Position + float64(elapsed)/1000.0
}
