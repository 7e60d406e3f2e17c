package fetcher

import "errors"

var (
	// ErrHTTPStatus is returned when the server answers with a status code of
	// 400 or above. The wrapped message carries the actual code.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrUnsupportedScheme is returned for addresses that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrUnsupportedEncoding is returned when the response uses a
	// Content-Encoding that cannot be decoded.
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
)
