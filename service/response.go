// Package service implements the per-block service runtime and
// dispatcher of spec.md §4.B: a static registry mapping
// (service_name, method_name) to handlers, an InvokeContext shared
// across nested calls, cycle metering, and the before/after hook
// pipeline.
package service

// ServiceResponse is returned by every genesis/hook/read/write method.
// Code == 0 means success; SucceedData is serialized back to the
// receipt's response.ret.
type ServiceResponse struct {
	Code         uint64
	SucceedData  string
	ErrorMessage string
}

// Succeed builds a code-0 response.
func Succeed(data string) ServiceResponse {
	return ServiceResponse{Code: 0, SucceedData: data}
}

// Fail builds a nonzero-code error response.
func Fail(code uint64, message string) ServiceResponse {
	return ServiceResponse{Code: code, ErrorMessage: message}
}

// IsError reports whether the response signals failure.
func (r ServiceResponse) IsError() bool { return r.Code != 0 }
