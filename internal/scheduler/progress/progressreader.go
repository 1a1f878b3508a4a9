package progress

import "io"

// Reader wraps an io.Reader and invokes a callback every reportInterval bytes.
type Reader struct {
	r          io.Reader
	total      int64
	onProgress func(written, total int64)

	read           int64
	sinceReport    int64
	reportInterval int64
}

func NewReader(r io.Reader, total, interval int64, cb func(written, total int64)) *Reader {
	return &Reader{
		r:              r,
		total:          total,
		onProgress:     cb,
		reportInterval: interval,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.sinceReport += int64(n)

		if pr.sinceReport >= pr.reportInterval {
			pr.onProgress(pr.read, pr.total)
			pr.sinceReport = 0
		}
	}

	return n, err
}

// Written reports the cumulative number of bytes read through the wrapper.
func (pr *Reader) Written() int64 {
	return pr.read
}
