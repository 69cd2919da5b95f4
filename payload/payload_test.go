package payload

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
)

func refs(n int) []models.ResourceRef {
	out := make([]models.ResourceRef, n)
	for i := range out {
		out[i] = models.ResourceRef{Bucket: "media", Key: fmt.Sprintf("videos/r%d.mp4", i), Size: 1024}
	}
	return out
}

func testBuilder() *Builder {
	return NewBuilder(Config{
		RecordPrefix:    "batch",
		MinRecords:      100,
		MaxRecords:      50000,
		MaxResourceSize: 1 << 30,
		Template: Template{
			Prompt:      "Summarize this video.",
			MaxTokens:   300,
			Temperature: 0.3,
			TopP:        0.9,
			BucketOwner: "123456789012",
		},
	})
}

func TestBuildOneRecordPerRef(t *testing.T) {
	records, err := testBuilder().Build(refs(100))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(records) != 100 {
		t.Fatalf("expected 100 records, got %d", len(records))
	}

	seen := make(map[string]bool)
	for i, rec := range records {
		want := fmt.Sprintf("batch-%d", i)
		if rec.ID != want {
			t.Errorf("record %d: expected id %s, got %s", i, want, rec.ID)
		}
		if seen[rec.ID] {
			t.Errorf("duplicate id %s", rec.ID)
		}
		seen[rec.ID] = true

		if got := ResourceURI(rec); got != fmt.Sprintf("s3://media/videos/r%d.mp4", i) {
			t.Errorf("record %d references %s", i, got)
		}
	}
}

func TestBuildEmbedsLocationAndInstruction(t *testing.T) {
	b := NewBuilder(Config{
		MinRecords: 1,
		Template: Template{
			Prompt:       "Describe it.",
			SystemPrompt: "You are a video analyst.",
			MaxTokens:    200,
			Temperature:  0.5,
		},
	})

	records, err := b.Build([]models.ResourceRef{{Bucket: "media", Key: "clips/a.MOV", Size: 10}})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var in map[string]interface{}
	if err := json.Unmarshal(records[0].Input, &in); err != nil {
		t.Fatalf("input is not JSON: %v", err)
	}

	if in["schemaVersion"] != "messages-v1" {
		t.Errorf("unexpected schema version %v", in["schemaVersion"])
	}
	raw := string(records[0].Input)
	for _, want := range []string{
		`"uri":"s3://media/clips/a.MOV"`,
		`"format":"mov"`,
		`"text":"Describe it."`,
		`"system":[{"text":"You are a video analyst."}]`,
		`"maxTokens":200`,
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected input to contain %s, got %s", want, raw)
		}
	}
	if strings.Contains(raw, "bucketOwner") {
		t.Error("did not expect bucketOwner when unset")
	}
	if records[0].ID != "batch-0" {
		t.Errorf("expected default prefix, got %s", records[0].ID)
	}
}

func TestBuildBusinessRules(t *testing.T) {
	oversized := refs(100)
	oversized[42].Size = 2 << 30

	unsupported := refs(100)
	unsupported[7].Key = "videos/readme.txt"

	tests := []struct {
		name     string
		refs     []models.ResourceRef
		sentinel error
	}{
		{"zero resources", nil, errors.ErrBelowMinimum},
		{"three resources", refs(3), errors.ErrBelowMinimum},
		{"ninety nine resources", refs(99), errors.ErrBelowMinimum},
		{"oversized resource", oversized, errors.ErrOversized},
		{"unsupported extension", unsupported, errors.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := testBuilder().Build(tt.refs)
			if err == nil {
				t.Fatal("expected error")
			}
			if records != nil {
				t.Error("expected no records on rejection")
			}
			if !errors.IsBusinessRule(err) {
				t.Errorf("expected business rule error, got %v", err)
			}
			if !stderrors.Is(err, tt.sentinel) {
				t.Errorf("expected %v, got %v", tt.sentinel, err)
			}
		})
	}
}

func TestBuildAboveMaximum(t *testing.T) {
	b := NewBuilder(Config{MinRecords: 1, MaxRecords: 5})
	_, err := b.Build(refs(6))
	if !stderrors.Is(err, errors.ErrAboveMaximum) {
		t.Errorf("expected ErrAboveMaximum, got %v", err)
	}
}

func TestOversizedMessageListsEveryResource(t *testing.T) {
	in := refs(100)
	in[1].Size = 2 << 30
	in[2].Size = 3 << 30

	err := testBuilder().Check(in)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"s3://media/videos/r1.mp4", "s3://media/videos/r2.mp4"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected %s in %q", key, err.Error())
		}
	}
}

func TestMediaFormat(t *testing.T) {
	tests := []struct {
		key    string
		format string
		ok     bool
	}{
		{"a.mp4", "mp4", true},
		{"a.MKV", "mkv", true},
		{"a.3gp", "three_gp", true},
		{"a.txt", "", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		format, ok := Template{}.MediaFormat(tt.key)
		if format != tt.format || ok != tt.ok {
			t.Errorf("MediaFormat(%s) = (%s, %v), want (%s, %v)", tt.key, format, ok, tt.format, tt.ok)
		}
	}

	if format, ok := (Template{Format: "webm"}).MediaFormat("a.bin"); format != "webm" || !ok {
		t.Error("expected override format")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records, err := testBuilder().Build(refs(120))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if lines := strings.Count(buf.String(), "\n"); lines != 120 {
		t.Errorf("expected 120 lines, got %d", lines)
	}

	decoded, lineErrs := Decode(&buf, "input.jsonl")
	if len(lineErrs) != 0 {
		t.Fatalf("unexpected line errors: %v", lineErrs)
	}

	byID := make(map[string]models.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	if len(decoded) != len(byID) {
		t.Fatalf("expected %d records, got %d", len(byID), len(decoded))
	}
	for _, rec := range decoded {
		orig, ok := byID[rec.ID]
		if !ok {
			t.Errorf("unexpected id %s", rec.ID)
			continue
		}
		if !bytes.Equal(orig.Input, rec.Input) {
			t.Errorf("record %s input changed", rec.ID)
		}
	}
}

func TestDecodePerLineErrors(t *testing.T) {
	doc := strings.Join([]string{
		`{"recordId":"batch-0","modelOutput":{"output":{}}}`,
		`not json`,
		``,
		`{"modelOutput":{}}`,
		`{"recordId":"batch-1","error":{"errorCode":400,"errorMessage":"bad video"}}`,
	}, "\n")

	records, lineErrs := Decode(strings.NewReader(doc), "out.jsonl.out")

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(lineErrs) != 2 {
		t.Fatalf("expected 2 line errors, got %d", len(lineErrs))
	}
	if lineErrs[0].Line != 2 || lineErrs[1].Line != 4 {
		t.Errorf("unexpected line numbers %d, %d", lineErrs[0].Line, lineErrs[1].Line)
	}
	for _, le := range lineErrs {
		if !errors.IsData(le) {
			t.Errorf("expected data error, got %v", le)
		}
		if !strings.HasPrefix(le.Error(), "out.jsonl.out:") {
			t.Errorf("expected source in message, got %s", le.Error())
		}
	}
	if !records[1].Failed() || records[1].Error.Message != "bad video" {
		t.Errorf("expected record error to be parsed, got %+v", records[1].Error)
	}
}

func TestDecodeSkipsOversizedLine(t *testing.T) {
	huge := fmt.Sprintf(`{"recordId":"batch-1","modelOutput":{"text":%q}}`, strings.Repeat("x", maxLineSize))
	doc := strings.Join([]string{
		`{"recordId":"batch-0","modelOutput":{}}`,
		huge,
		`{"recordId":"batch-2","modelOutput":{}}`,
		`{"recordId":"batch-3","modelOutput":{}}`,
	}, "\n")

	records, lineErrs := Decode(strings.NewReader(doc), "out.jsonl.out")

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"batch-0", "batch-2", "batch-3"} {
		if records[i].ID != want {
			t.Errorf("record %d: expected %s, got %s", i, want, records[i].ID)
		}
	}
	if len(lineErrs) != 1 {
		t.Fatalf("expected 1 line error, got %d", len(lineErrs))
	}
	if lineErrs[0].Line != 2 || !errors.IsData(lineErrs[0]) {
		t.Errorf("expected data error on line 2, got %v", lineErrs[0])
	}
}

func TestDecodeLastLineWithoutNewline(t *testing.T) {
	doc := "{\"recordId\":\"batch-0\"}\r\n{\"recordId\":\"batch-1\"}"

	records, lineErrs := Decode(strings.NewReader(doc), "in.jsonl")
	if len(records) != 2 || len(lineErrs) != 0 {
		t.Errorf("expected 2 clean records, got %d (%v)", len(records), lineErrs)
	}
}
