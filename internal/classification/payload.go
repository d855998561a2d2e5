package classification

import "encoding/json"

const (
	// EnvironmentKey, ClassesKey and HieraDataKey replace the configured CMDB field
	// names in the emitted payload.
	EnvironmentKey = "puppet_environment"
	ClassesKey     = "puppet_classes"
	HieraDataKey   = "hiera_data"

	// BackendPresentKey is always present in hiera data once classes were derived,
	// signalling that this data source is active.
	BackendPresentKey = "servicenow_cmdb_integration_data_backend_present"
)

// Classes maps a class name to its parameters.
type Classes map[string]map[string]interface{}

// Payload is a validated CMDB record ready for the classification layer.
// Fields holds the untouched remainder of the source record.
type Payload struct {
	Environment *string
	Classes     Classes
	HieraData   map[string]interface{}
	Fields      map[string]interface{}
}

// IsEmpty reports whether the payload carries no data at all.
func (p *Payload) IsEmpty() bool {
	return p.Environment == nil && p.Classes == nil && p.HieraData == nil && len(p.Fields) == 0
}

// MarshalJSON flattens the payload back into a single object.
func (p *Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Fields)+3)
	for k, v := range p.Fields {
		out[k] = v
	}
	if p.Environment != nil {
		out[EnvironmentKey] = *p.Environment
	}
	if p.Classes != nil {
		out[ClassesKey] = p.Classes
	}
	if p.HieraData != nil {
		out[HieraDataKey] = p.HieraData
	}
	return json.Marshal(out)
}

// Response is the document printed for the trusted external command.
type Response struct {
	Servicenow *Payload `json:"servicenow"`
}

// EmptyResponse is returned when the CMDB has no record for a node.
func EmptyResponse() *Response {
	return &Response{Servicenow: &Payload{}}
}
