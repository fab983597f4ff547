// Package scanner turns the chain's append-only event log into bounded,
// decoded batches: the Chunker computes [from,to] block windows against the
// head observed at scheduling time, and the Fetcher retrieves and decodes
// contract events for a window through the failover RPC client.
package scanner

// DefaultMaxWindow bounds one eth_getLogs request. Large enough to make
// catch-up cheap, small enough to stay under node response-size limits.
const DefaultMaxWindow = 1_000_000

// Window is a bounded inclusive block range submitted in one log fetch.
type Window struct {
	From uint64
	To   uint64
}

// Windows computes the strictly increasing scan windows between the last
// checkpoint and the chain head captured at scheduling time.
//
// The first window starts at checkpoint+1, or at startBlock when the source
// has never been scanned. The head is not re-read per window, so one sync
// cycle processes a stable amount of history even while new blocks arrive.
// An up-to-date source yields no windows.
func Windows(checkpoint *uint64, head, startBlock, maxWindow uint64) []Window {
	if maxWindow == 0 {
		maxWindow = DefaultMaxWindow
	}

	from := startBlock
	if checkpoint != nil {
		from = *checkpoint + 1
	}
	if from > head {
		return nil
	}

	var windows []Window
	for from <= head {
		to := from + maxWindow - 1
		if to > head {
			to = head
		}
		windows = append(windows, Window{From: from, To: to})
		from = to + 1
	}
	return windows
}
