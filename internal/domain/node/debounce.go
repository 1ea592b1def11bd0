package node

// debounceRun is the number of consecutive equal samples required on each side of a
// transition
const debounceRun = 3

// ShouldNotify decides whether the newest samples form a stable transition.
//
// It fires when the history is full, the newest debounceRun samples all carry the
// current status and each of the debounceRun samples before them carries a different
// status. The returned sample is the first one of the new run, i.e. the moment the
// change happened. Once the run grows past debounceRun the window no longer matches,
// so a transition is reported exactly once; single-sample flaps never match.
func ShouldNotify(samples []StatusSample) (bool, StatusSample) {
	if len(samples) < 2*debounceRun {
		return false, StatusSample{}
	}
	window := samples[len(samples)-2*debounceRun:]
	current := window[len(window)-1].Status

	for _, s := range window[debounceRun:] {
		if s.Status != current {
			return false, StatusSample{}
		}
	}
	for _, s := range window[:debounceRun] {
		if s.Status == current {
			return false, StatusSample{}
		}
	}
	return true, window[debounceRun]
}
