// Package openlineage serializes resolved model lineage into
// lineage-protocol event payloads understood by Marquez-compatible stores.
package openlineage

// Schema URLs for the facets this producer emits.
const (
	schemaFacetURL          = "https://openlineage.io/spec/facets/1-0-0/SchemaDatasetFacet.json"
	columnLineageJobURL     = "https://openlineage.io/spec/facets/1-0-0/ColumnLineageJobFacet.json"
	columnLineageDatasetURL = "https://openlineage.io/spec/facets/1-0-0/ColumnLineageDatasetFacet.json"
)

// EventTypeComplete marks a run that finished producing its outputs.
const EventTypeComplete = "COMPLETE"

// Event is one lineage-protocol event envelope.
type Event struct {
	EventType string    `json:"eventType"`
	EventTime string    `json:"eventTime"`
	Run       Run       `json:"run"`
	Job       Job       `json:"job"`
	Inputs    []Dataset `json:"inputs"`
	Outputs   []Dataset `json:"outputs"`
	Producer  string    `json:"producer"`
}

// Run carries the unique run identifier of the event.
type Run struct {
	RunID string `json:"runId"`
}

// Job identifies the unit of work that produced the outputs.
type Job struct {
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Facets    JobFacets `json:"facets"`
}

// JobFacets holds the structured facets attached to a job.
type JobFacets struct {
	ColumnLineage *ColumnLineageFacet `json:"columnLineage,omitempty"`
}

// Dataset is an input or output dataset reference with facets.
type Dataset struct {
	Namespace string        `json:"namespace"`
	Name      string        `json:"name"`
	Facets    DatasetFacets `json:"facets"`
}

// DatasetFacets holds the structured facets attached to a dataset.
type DatasetFacets struct {
	Schema        *SchemaFacet        `json:"schema,omitempty"`
	ColumnLineage *ColumnLineageFacet `json:"columnLineage,omitempty"`
}

// SchemaFacet lists the fields of a dataset.
type SchemaFacet struct {
	Producer  string        `json:"_producer"`
	SchemaURL string        `json:"_schemaURL"`
	Fields    []SchemaField `json:"fields"`
}

// SchemaField is one field of a schema facet.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ColumnLineageFacet maps each output field to the input fields and
// transformation that produced it. encoding/json sorts map keys, so the
// serialized facet is deterministic.
type ColumnLineageFacet struct {
	Producer  string                        `json:"_producer"`
	SchemaURL string                        `json:"_schemaURL"`
	Fields    map[string]ColumnLineageField `json:"fields"`
}

// ColumnLineageField describes the provenance of one output field.
type ColumnLineageField struct {
	InputFields               []InputField `json:"inputFields"`
	TransformationType        string       `json:"transformationType"`
	TransformationDescription string       `json:"transformationDescription,omitempty"`
}

// InputField is one contributing input field descriptor.
type InputField struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Field     string `json:"field"`
}
