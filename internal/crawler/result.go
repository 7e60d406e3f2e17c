package crawler

import "slices"

// Result is the outcome of one Download call.
//
// Every address appears at most once across Downloaded and the keys of
// Errors. An address whose download succeeded but whose links could not be
// extracted is reported in Errors only.
type Result struct {
	// Downloaded lists the addresses fetched successfully, in no particular order.
	Downloaded []string

	// Errors maps each failed address to a *FetchError or *ExtractionError.
	Errors map[string]error
}

// dropFailed removes addresses from Downloaded that also have an error.
func (r *Result) dropFailed() {
	if len(r.Errors) == 0 {
		return
	}
	r.Downloaded = slices.DeleteFunc(r.Downloaded, func(address string) bool {
		_, failed := r.Errors[address]
		return failed
	})
}
