package payload

import (
	"path"
	"strings"
)

// Template is the fixed instruction applied to every resource in a batch.
type Template struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	TopP         float64
	TopK         int
	// Format overrides the media format derived from the key extension.
	Format      string
	BucketOwner string
}

var videoFormats = map[string]string{
	"mp4":  "mp4",
	"mov":  "mov",
	"mkv":  "mkv",
	"webm": "webm",
	"flv":  "flv",
	"mpeg": "mpeg",
	"mpg":  "mpg",
	"wmv":  "wmv",
	"3gp":  "three_gp",
}

// MediaFormat resolves the format name the model expects for key.
func (t Template) MediaFormat(key string) (string, bool) {
	if t.Format != "" {
		return t.Format, true
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	format, ok := videoFormats[ext]
	return format, ok
}

// messages-v1 request body

type modelInput struct {
	SchemaVersion   string           `json:"schemaVersion"`
	System          []textBlock      `json:"system,omitempty"`
	Messages        []message        `json:"messages"`
	InferenceConfig *inferenceConfig `json:"inferenceConfig,omitempty"`
}

type textBlock struct {
	Text string `json:"text"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Text  string      `json:"text,omitempty"`
	Video *videoBlock `json:"video,omitempty"`
}

type videoBlock struct {
	Format string      `json:"format"`
	Source videoSource `json:"source"`
}

type videoSource struct {
	S3Location s3Location `json:"s3Location"`
}

type s3Location struct {
	URI         string `json:"uri"`
	BucketOwner string `json:"bucketOwner,omitempty"`
}

type inferenceConfig struct {
	MaxTokens   int     `json:"maxTokens,omitempty"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP,omitempty"`
	TopK        int     `json:"topK,omitempty"`
}

func (t Template) input(uri, format string) modelInput {
	in := modelInput{
		SchemaVersion: "messages-v1",
		Messages: []message{
			{
				Role: "user",
				Content: []contentBlock{
					{Video: &videoBlock{
						Format: format,
						Source: videoSource{S3Location: s3Location{URI: uri, BucketOwner: t.BucketOwner}},
					}},
					{Text: t.Prompt},
				},
			},
		},
		InferenceConfig: &inferenceConfig{
			MaxTokens:   t.MaxTokens,
			Temperature: t.Temperature,
			TopP:        t.TopP,
			TopK:        t.TopK,
		},
	}
	if t.SystemPrompt != "" {
		in.System = []textBlock{{Text: t.SystemPrompt}}
	}
	return in
}
