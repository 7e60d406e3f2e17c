package crawler

import "context"

// Downloader fetches the resource named by an address.
// Implementations may block on I/O and must be safe for concurrent use.
type Downloader interface {
	Download(ctx context.Context, address string) (Document, error)
}

// Document is a downloaded resource that can list the addresses it links to.
type Document interface {
	ExtractLinks() ([]string, error)
}

// DownloaderFunc adapts an ordinary function to the Downloader interface.
type DownloaderFunc func(ctx context.Context, address string) (Document, error)

// Download calls f(ctx, address).
func (f DownloaderFunc) Download(ctx context.Context, address string) (Document, error) {
	return f(ctx, address)
}
