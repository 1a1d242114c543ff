//go:build swagger
// +build swagger

// Package docs carries the OpenAPI metadata for the storage-access
// introspection/config API. This file exists only for spec generation.
package docs

// @title Syncdal Storage Access API
// @version 1.0
// @description Introspection and configuration surface of the file-synchronization storage-access layer: dispatch queue snapshots, write-back cache parameters, adapter information and the shared call timeout.

// @contact.name Syncdal Maintainers

// @license.name MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
