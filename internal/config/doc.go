// Package config holds the crawl configuration assembled from CLI flags
// and the optional .webcrawler YAML file with per-site settings.
package config
