package classification

import (
	"context"

	"servicenow-cmdb-integration/internal/cmdb"
)

// RecordFetcher looks up a single CMDB row.
type RecordFetcher interface {
	FetchRecord(ctx context.Context, table, field, value string) (cmdb.Record, error)
}

// Options names the CMDB table and the fields the classifier reads.
type Options struct {
	Table            string
	CertnameField    string
	ClassesField     string
	EnvironmentField string
}

// Servicenow fetches the node's record and classifies it. A node without a CMDB
// record gets an empty payload and is never validated.
func Servicenow(ctx context.Context, fetcher RecordFetcher, opts Options, certname string) (*Response, error) {
	record, err := fetcher.FetchRecord(ctx, opts.Table, opts.CertnameField, certname)
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return EmptyResponse(), nil
	}

	payload, err := Classify(record, opts.ClassesField, opts.EnvironmentField)
	if err != nil {
		return nil, err
	}
	return &Response{Servicenow: payload}, nil
}
