package models

import (
	"encoding/json"
	"strings"
)

// Record is one line of a batch document. Field names follow the batch
// service's JSONL contract.
type Record struct {
	ID     string          `json:"recordId"`
	Input  json.RawMessage `json:"modelInput,omitempty"`
	Output json.RawMessage `json:"modelOutput,omitempty"`
	Error  *RecordError    `json:"error,omitempty"`
}

type RecordError struct {
	Code    int    `json:"errorCode"`
	Message string `json:"errorMessage"`
}

func (r *Record) HasOutput() bool {
	return len(r.Output) > 0 && string(r.Output) != "null"
}

func (r *Record) Failed() bool {
	return r.Error != nil
}

type messagesOutput struct {
	Output struct {
		Message struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	} `json:"output"`
}

// OutputText joins the assistant text blocks of a messages-v1 response.
// It returns "" when the output is absent or has another shape.
func (r *Record) OutputText() string {
	if !r.HasOutput() {
		return ""
	}
	var out messagesOutput
	if err := json.Unmarshal(r.Output, &out); err != nil {
		return ""
	}
	parts := make([]string, 0, len(out.Output.Message.Content))
	for _, c := range out.Output.Message.Content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Result is the flattened form written to results.jsonl.
type Result struct {
	ID       string `json:"recordId"`
	Resource string `json:"resource,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Error    string `json:"error,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
}
