package app

import (
	"net/http"

	"github.com/gorilla/schema"
	"github.com/pkg/errors"
)

// DeployQuery holds the query parameters of the deploy endpoint
type DeployQuery struct {
	// Async returns right away and leaves the deployment running in the background
	Async bool `schema:"async"`
}

// LogsQuery filters the recent window
type LogsQuery struct {
	Source string `schema:"source"`
	Since  uint64 `schema:"since"`
}

func parseQueryParams(r *http.Request, values ...interface{}) error {
	params := r.URL.Query()

	// ignore the empty params
	for key, val := range params {
		for _, v := range val {
			if v == "" {
				delete(params, key)
			}
		}
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	for _, value := range values {
		if err := decoder.Decode(value, params); err != nil {
			return errors.Wrapf(err, "failed to decode %T parameters", value)
		}
	}

	return nil
}
