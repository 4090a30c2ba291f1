package ows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/robert-malhotra/go-ogc-client/pkg/worker"
	"github.com/robert-malhotra/go-ogc-client/pkg/xmlutil"
)

// TaskParseCapabilities parses a capabilities body into *Capabilities.
const TaskParseCapabilities = "ows.parseCapabilities"

// ParseParams is the payload of TaskParseCapabilities.
type ParseParams struct {
	Body        []byte `json:"body"`
	ContentType string `json:"contentType,omitempty"`
}

// RegisterTasks adds the ows tasks to reg.
func RegisterTasks(reg *worker.Registry) {
	reg.HandleFunc(TaskParseCapabilities, parseCapabilitiesTask)
}

var defaultRegistry = func() *worker.Registry {
	reg := worker.NewRegistry()
	RegisterTasks(reg)
	return reg
}()

func parseCapabilitiesTask(_ context.Context, raw json.RawMessage) (any, error) {
	var params ParseParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("ows: decode task params: %w", err)
	}
	doc, err := xmlutil.Parse(params.Body, params.ContentType)
	if err != nil {
		return nil, err
	}
	return ParseCapabilities(doc)
}
