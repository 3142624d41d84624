// Package config holds the server configuration and its environment overlay.
//
// Defaults follow the development setup of the web application the server
// sits next to; production deployments configure everything through the
// environment (PORT, REDIS_URL, DATABASE_URL, ...).
package config
