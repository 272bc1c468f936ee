package compile

// DefaultFailureMessage replaces empty compiler error messages.
const DefaultFailureMessage = "compilation failed"

// Failure describes a rejected compile.
type Failure struct {
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Result is either a success carrying CSS (and optionally a source map) or a
// Failure. The zero value is not a valid Result; use Succeeded or Failed.
type Result struct {
	css       []byte
	sourceMap []byte
	failure   *Failure
}

// Succeeded builds a successful result. sourceMap may be nil.
func Succeeded(css, sourceMap []byte) Result {
	if css == nil {
		css = []byte{}
	}
	return Result{css: css, sourceMap: sourceMap}
}

// Failed builds a failed result. An empty message is replaced so a failure
// always explains itself.
func Failed(message string) Result {
	if message == "" {
		message = DefaultFailureMessage
	}
	return Result{failure: &Failure{Message: message}}
}

func (r Result) OK() bool          { return r.failure == nil }
func (r Result) CSS() []byte       { return r.css }
func (r Result) Map() []byte       { return r.sourceMap }
func (r Result) Failure() *Failure { return r.failure }

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

// Text is what single-file deliveries show: the CSS, or the failure message.
func (r Result) Text() string {
	if r.failure != nil {
		return r.failure.Message
	}
	return string(r.css)
}
