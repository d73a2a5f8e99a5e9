package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Endpoint names understood by an API implementation
const (
	EndpointTask                     = "task"
	EndpointNextTask                 = "nextTask"
	EndpointSubmitAnnotation         = "submitAnnotation"
	EndpointUpdateAnnotation         = "updateAnnotation"
	EndpointDeleteAnnotation         = "deleteAnnotation"
	EndpointCreateDraftForTask       = "createDraftForTask"
	EndpointCreateDraftForAnnotation = "createDraftForAnnotation"
	EndpointUpdateDraft              = "updateDraft"
	EndpointDeleteDraft              = "deleteDraft"
	EndpointAnnotationHistory        = "annotationHistory"
	EndpointPresignURLForProject     = "presignUrlForProject"
)

// Params are the path/query parameters of a call
type Params map[string]string

// Parameter names
const (
	ParamTaskID       = "taskID"
	ParamAnnotationID = "annotationID"
	ParamDraftID      = "draftID"
	ParamAction       = "action"
	ParamURL          = "url"
)

// Response is what an API call returns. Status follows HTTP conventions.
type Response struct {
	Status int
	Body   json.RawMessage
}

// Failed reports a status of 400 or more.
func (r *Response) Failed() bool {
	return r.Status >= 400
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.Status)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("while decoding response body: %w", err)
	}
	return nil
}

// JSONResponse builds a response with a marshalled body.
func JSONResponse(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("while encoding response body: %w", err)
	}
	return &Response{Status: status, Body: body}, nil
}

// API is the network collaborator. A nil response with a nil error means the
// call failed and was already handled: the caller must not retry.
type API interface {
	Call(ctx context.Context, endpoint string, params Params, body any) (*Response, error)
}
