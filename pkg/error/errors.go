package error

import "net/http"

// GenericError is implemented by every typed error in this package so the
// recovery middleware can map panics to a proper HTTP response.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

type BadRequestError string

func (err BadRequestError) Error() string {
	return string(err)
}

func (err BadRequestError) ErrCode() string {
	return "BAD_REQUEST"
}

func (err BadRequestError) StatusCode() int {
	return http.StatusBadRequest
}

type NotFoundError string

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}
