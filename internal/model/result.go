package model

// OutputKind tags how a worker's raw output was decoded.
type OutputKind string

const (
	// OutputStructured means the output parsed into structured records.
	OutputStructured OutputKind = "structured"
	// OutputRaw means parsing failed and the content is kept verbatim.
	OutputRaw OutputKind = "raw"
)

// Output is the decoded form of one worker's response: either a record
// set or an opaque fallback, never both.
type Output struct {
	Kind    OutputKind       `json:"kind"`
	Records []map[string]any `json:"records,omitempty"`
	Raw     string           `json:"raw,omitempty"`
}

// UnitResult is the outcome of processing one WorkUnit. Err carries the
// error marker; a result has either decoded output or an error marker.
type UnitResult struct {
	URL    string `json:"url"`
	Output Output `json:"output"`
	Err    string `json:"error,omitempty"`
}

// Failed reports whether the unit carries an error marker.
func (r UnitResult) Failed() bool {
	return r.Err != ""
}

// Result is the final artifact produced at integration completion. It is
// created once and never mutated afterwards.
type Result struct {
	Format      string `json:"format"`
	Size        string `json:"size"`
	Records     int    `json:"records"`
	Fields      int    `json:"fields"`
	DownloadURL string `json:"download_url"`

	// Headers, Data and CSV back the preview and download endpoints and
	// are not part of the wire representation pushed to clients.
	Headers []string         `json:"-"`
	Data    []map[string]any `json:"-"`
	CSV     string           `json:"-"`
}

// Clone returns a copy whose slices are independent of the original.
func (r *Result) Clone() *Result {
	dup := *r
	dup.Headers = append([]string(nil), r.Headers...)
	dup.Data = append([]map[string]any(nil), r.Data...)
	return &dup
}
