// Package schema loads collection descriptors. Descriptor files are YAML or
// JSON (a single collection or a "collections" list); OpenAPI documents
// contribute one collection per object component schema. The package also
// describes the collection HTTP API as an OpenAPI document.
package schema
