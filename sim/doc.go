// Package sim defines the value objects exchanged with the SimLib guest.
//
// SearchPattern, BearingEllipse and NavigationSolution are write-once
// records built by the bridge from guest output. Each carries a Status:
// StatusOK, StatusNoSolution when the guest ran but found no answer, or
// StatusFailed for the invalid sentinel returned after a failed call. The
// sentinel field values (latitude 91, longitude 181, bearing 361, negative
// distances) are kept so callers that only inspect fields still see a
// recognizable "no answer".
package sim
