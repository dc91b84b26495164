package batch

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    []string
		wantErr bool
	}{
		{
			name:  "single string",
			input: "aDYlmkoiT7qAbFP3cQ1jJg==",
			want:  []string{"aDYlmkoiT7qAbFP3cQ1jJg=="},
		},
		{
			name:  "array of strings",
			input: []interface{}{"occ-1", "occ-2", "occ-3"},
			want:  []string{"occ-1", "occ-2", "occ-3"},
		},
		{
			name:    "nil input",
			input:   nil,
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "empty array",
			input:   []interface{}{},
			wantErr: true,
		},
		{
			name:    "array with non-string",
			input:   []interface{}{"occ-1", 123, "occ-3"},
			wantErr: true,
		},
		{
			name:    "array with empty string",
			input:   []interface{}{"occ-1", "", "occ-3"},
			wantErr: true,
		},
		{
			name:    "invalid type",
			input:   123,
			wantErr: true,
		},
		{
			name:  "JSON string array",
			input: `["occ-1", "occ-2", "occ-3"]`,
			want:  []string{"occ-1", "occ-2", "occ-3"},
		},
		{
			name:  "JSON string array of UUIDs",
			input: `["aDYlmkoiT7qAbFP3cQ1jJg==", "/ajXp112QmuoKj4854875=="]`,
			want:  []string{"aDYlmkoiT7qAbFP3cQ1jJg==", "/ajXp112QmuoKj4854875=="},
		},
		{
			name:  "JSON string single element array",
			input: `["occ-1"]`,
			want:  []string{"occ-1"},
		},
		{
			name:    "JSON string empty array",
			input:   `[]`,
			wantErr: true,
		},
		{
			name:  "invalid JSON string",
			input: `[invalid json`,
			want:  []string{`[invalid json`},
		},
		{
			// Meeting UUIDs can legitimately start with a bracket-like
			// character sequence without being JSON.
			name:  "string starting with bracket (not JSON)",
			input: `[legacy] occurrence`,
			want:  []string{`[legacy] occurrence`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.input, "occurrence_id")
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseStringOrArray() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && !stringSliceEqual(got, tt.want) {
				t.Errorf("ParseStringOrArray() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatResults(t *testing.T) {
	results := []Result{
		{ID: "occ-1", Status: "success", Result: "Summary for Planning Sync"},
		{ID: "occ-2", Status: "success", Result: "Summary for Retro"},
		{ID: "occ-3", Status: "error", Error: "meeting summary not found"},
	}

	output := FormatResults(results)

	var br BatchResult
	if err := json.Unmarshal([]byte(output), &br); err != nil {
		t.Fatalf("Failed to parse output JSON: %v", err)
	}

	if br.Total != 3 {
		t.Errorf("Total = %d, want 3", br.Total)
	}
	if br.Successful != 2 {
		t.Errorf("Successful = %d, want 2", br.Successful)
	}
	if br.Failed != 1 {
		t.Errorf("Failed = %d, want 1", br.Failed)
	}
	if len(br.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(br.Results))
	}
}

func TestProcessBatch(t *testing.T) {
	ids := []string{"occ-1", "occ-2", "occ-3"}

	// occ-2 has no stored summary
	fn := func(id string) (string, error) {
		if id == "occ-2" {
			return "", errors.New("no summary for occ-2")
		}
		return "summary of " + id, nil
	}

	results := ProcessBatch(ids, fn)

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	if results[0].Status != "success" {
		t.Errorf("results[0].Status = %s, want success", results[0].Status)
	}
	if results[0].Result != "summary of occ-1" {
		t.Errorf("results[0].Result = %s, want 'summary of occ-1'", results[0].Result)
	}

	if results[1].Status != "error" {
		t.Errorf("results[1].Status = %s, want error", results[1].Status)
	}
	if results[1].Error != "no summary for occ-2" {
		t.Errorf("results[1].Error = %s, want 'no summary for occ-2'", results[1].Error)
	}

	if results[2].Status != "success" {
		t.Errorf("results[2].Status = %s, want success", results[2].Status)
	}
	if results[2].Result != "summary of occ-3" {
		t.Errorf("results[2].Result = %s, want 'summary of occ-3'", results[2].Result)
	}
}

func TestNewSuccessResult(t *testing.T) {
	result := NewSuccessResult("occ-1", "summary text")

	if result.ID != "occ-1" {
		t.Errorf("ID = %s, want occ-1", result.ID)
	}
	if result.Status != "success" {
		t.Errorf("Status = %s, want success", result.Status)
	}
	if result.Result != "summary text" {
		t.Errorf("Result = %s, want 'summary text'", result.Result)
	}
	if result.Error != "" {
		t.Errorf("Error should be empty, got %s", result.Error)
	}
}

func TestNewErrorResult(t *testing.T) {
	err := errors.New("meeting summary not found")
	result := NewErrorResult("occ-1", err)

	if result.ID != "occ-1" {
		t.Errorf("ID = %s, want occ-1", result.ID)
	}
	if result.Status != "error" {
		t.Errorf("Status = %s, want error", result.Status)
	}
	if result.Error != "meeting summary not found" {
		t.Errorf("Error = %s, want 'meeting summary not found'", result.Error)
	}
	if result.Result != "" {
		t.Errorf("Result should be empty, got %s", result.Result)
	}
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
