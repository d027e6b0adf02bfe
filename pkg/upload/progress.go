package upload

import "io"

// ProgressFunc receives a percentage between 0 and 100.
type ProgressFunc func(percent int)

// progressReader reports once per ChunkSize bytes read. Percentages stay
// at or below 90 so that 100 is only reported once the upload is recorded.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	reported int64
	fn       ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)

	for p.fn != nil && p.read-p.reported >= ChunkSize {
		p.reported += ChunkSize
		p.fn(p.percent(p.reported))
	}
	if err == io.EOF && p.fn != nil && p.reported < p.read {
		p.reported = p.read
		p.fn(p.percent(p.read))
	}

	return n, err
}

func (p *progressReader) percent(done int64) int {
	if p.total <= 0 {
		return 0
	}
	pct := int(done * 100 / p.total)
	if pct > 90 {
		pct = 90
	}
	return pct
}
