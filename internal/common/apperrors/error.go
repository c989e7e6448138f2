// Package apperrors provides hierarchical application errors that carry an
// HTTP status code. Errors are derived from one another with New, and
// errors.Is matches an error against any of its ancestors, so packages can
// declare a small tree of sentinel errors and refine them per call site.
package apperrors

type Error interface {
	Error() string
	ErrorAll() string
	New(msg string) Error
	MsgErr(msg string, err ...error) Error
	Msg(msg string) Error
	Err(err ...error) Error
	Unwrap() []error
	Is(target error) bool
	SetExpandError(expand bool) Error
	SetStatusCode(code int) Error
	StatusCode() int
}
