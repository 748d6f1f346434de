package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Operation kind identifiers, fixed at compile time. Routing selects the
// operation once; no stage branches on the kind string afterwards.
const (
	KindStandard         = "standard"
	KindPremium          = "premium"
	KindRemoveBackground = "remove-background"
	KindUpscale          = "upscale"
)

const (
	DefaultAspectRatio  = "1:1"
	DefaultScale        = 2
	maxScale            = 10
	maxPromptLength     = 2000
	defaultOutputFormat = "jpg"
)

var allowedAspectRatios = map[string]bool{
	"1:1": true, "16:9": true, "9:16": true,
	"4:3": true, "3:4": true, "3:2": true, "2:3": true,
}

var allowedOutputFormats = map[string]bool{
	"webp": true, "jpg": true, "png": true,
}

// GenerateInput is the normalized request payload shared by every operation
// kind. Each kind validates the subset of fields it cares about.
type GenerateInput struct {
	Prompt              string  `json:"prompt"`
	Style               string  `json:"style"`
	AspectRatio         string  `json:"aspect_ratio"`
	OutputFormat        string  `json:"output_format"`
	SourceImageURL      string  `json:"source_image_url"`
	SourceImageStrength float64 `json:"source_image_strength"`
	Scale               int     `json:"scale"`
}

// Operation describes one image-generation variant: its fixed credit cost,
// the capability an API key needs to run it, how its inference parameters
// are built and how the job output reference is extracted.
type Operation interface {
	Kind() string
	CreditCost() int
	Capability() string
	Model() string
	ValidateInput(in *GenerateInput) *ValidationError
	BuildParameters(in GenerateInput) (map[string]any, error)
	ExtractOutput(raw json.RawMessage) (string, error)
	FileExt(in GenerateInput) string
}

var (
	OpStandard         Operation = standardOp{}
	OpPremium          Operation = premiumOp{}
	OpRemoveBackground Operation = removeBackgroundOp{}
	OpUpscale          Operation = upscaleOp{}
)

// Operations lists every registered operation, keyed by kind. Routing is the
// only place allowed to look an operation up by its string kind.
func Operations() map[string]Operation {
	return map[string]Operation{
		KindStandard:         OpStandard,
		KindPremium:          OpPremium,
		KindRemoveBackground: OpRemoveBackground,
		KindUpscale:          OpUpscale,
	}
}

// --- standard ---

type standardOp struct{}

func (standardOp) Kind() string       { return KindStandard }
func (standardOp) CreditCost() int    { return 1 }
func (standardOp) Capability() string { return CapabilityCreateImage }
func (standardOp) Model() string      { return "flux-schnell" }

func (standardOp) ValidateInput(in *GenerateInput) *ValidationError {
	fields := map[string]string{}
	validatePrompt(in, fields)
	validateAspectRatio(in, fields)
	in.Style = strings.TrimSpace(in.Style)
	if len(in.Style) > 100 {
		fields["style"] = "must be at most 100 characters"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (o standardOp) BuildParameters(in GenerateInput) (map[string]any, error) {
	params := map[string]any{
		"prompt":        promptWithStyle(in),
		"aspect_ratio":  aspectOrDefault(in.AspectRatio),
		"num_outputs":   1,
		"output_format": "webp",
	}
	return nonEmpty(params)
}

func (standardOp) ExtractOutput(raw json.RawMessage) (string, error) {
	return firstOutputURL(raw)
}

func (standardOp) FileExt(GenerateInput) string { return ".webp" }

// --- premium ---

type premiumOp struct{}

func (premiumOp) Kind() string       { return KindPremium }
func (premiumOp) CreditCost() int    { return 4 }
func (premiumOp) Capability() string { return CapabilityCreateImage }
func (premiumOp) Model() string      { return "flux-1.1-pro" }

func (premiumOp) ValidateInput(in *GenerateInput) *ValidationError {
	fields := map[string]string{}
	validatePrompt(in, fields)
	validateAspectRatio(in, fields)
	in.OutputFormat = strings.ToLower(strings.TrimSpace(in.OutputFormat))
	if in.OutputFormat != "" && !allowedOutputFormats[in.OutputFormat] {
		fields["output_format"] = "must be one of webp, jpg, png"
	}
	if in.SourceImageURL != "" && !validURL(in.SourceImageURL) {
		fields["source_image_url"] = "must be a valid http(s) URL"
	}
	if in.SourceImageStrength != 0 {
		if in.SourceImageURL == "" {
			fields["source_image_strength"] = "requires source_image_url"
		} else if in.SourceImageStrength < 0 || in.SourceImageStrength > 1 {
			fields["source_image_strength"] = "must be between 0 and 1"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (premiumOp) BuildParameters(in GenerateInput) (map[string]any, error) {
	format := in.OutputFormat
	if format == "" {
		format = defaultOutputFormat
	}
	params := map[string]any{
		"prompt":        promptWithStyle(in),
		"aspect_ratio":  aspectOrDefault(in.AspectRatio),
		"output_format": format,
	}
	if in.SourceImageURL != "" {
		params["image_prompt"] = in.SourceImageURL
		if in.SourceImageStrength > 0 {
			params["image_prompt_strength"] = in.SourceImageStrength
		}
	}
	return nonEmpty(params)
}

func (premiumOp) ExtractOutput(raw json.RawMessage) (string, error) {
	return firstOutputURL(raw)
}

func (premiumOp) FileExt(in GenerateInput) string {
	format := in.OutputFormat
	if format == "" {
		format = defaultOutputFormat
	}
	return "." + format
}

// --- remove-background ---

type removeBackgroundOp struct{}

func (removeBackgroundOp) Kind() string       { return KindRemoveBackground }
func (removeBackgroundOp) CreditCost() int    { return 2 }
func (removeBackgroundOp) Capability() string { return CapabilityCreateImage }
func (removeBackgroundOp) Model() string      { return "remove-bg" }

func (removeBackgroundOp) ValidateInput(in *GenerateInput) *ValidationError {
	fields := map[string]string{}
	in.SourceImageURL = strings.TrimSpace(in.SourceImageURL)
	if in.SourceImageURL == "" {
		fields["source_image_url"] = "is required"
	} else if !validURL(in.SourceImageURL) {
		fields["source_image_url"] = "must be a valid http(s) URL"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (removeBackgroundOp) BuildParameters(in GenerateInput) (map[string]any, error) {
	return nonEmpty(map[string]any{"image": in.SourceImageURL})
}

func (removeBackgroundOp) ExtractOutput(raw json.RawMessage) (string, error) {
	return directOutputURL(raw)
}

func (removeBackgroundOp) FileExt(GenerateInput) string { return ".png" }

// --- upscale ---

type upscaleOp struct{}

func (upscaleOp) Kind() string       { return KindUpscale }
func (upscaleOp) CreditCost() int    { return 2 }
func (upscaleOp) Capability() string { return CapabilityCreateImage }
func (upscaleOp) Model() string      { return "real-esrgan" }

func (upscaleOp) ValidateInput(in *GenerateInput) *ValidationError {
	fields := map[string]string{}
	in.SourceImageURL = strings.TrimSpace(in.SourceImageURL)
	if in.SourceImageURL == "" {
		fields["source_image_url"] = "is required"
	} else if !validURL(in.SourceImageURL) {
		fields["source_image_url"] = "must be a valid http(s) URL"
	}
	if in.Scale == 0 {
		in.Scale = DefaultScale
	}
	if in.Scale < 2 || in.Scale > maxScale {
		fields["scale"] = fmt.Sprintf("must be between 2 and %d", maxScale)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (upscaleOp) BuildParameters(in GenerateInput) (map[string]any, error) {
	scale := in.Scale
	if scale == 0 {
		scale = DefaultScale
	}
	return nonEmpty(map[string]any{
		"image": in.SourceImageURL,
		"scale": scale,
	})
}

func (upscaleOp) ExtractOutput(raw json.RawMessage) (string, error) {
	return directOutputURL(raw)
}

func (upscaleOp) FileExt(GenerateInput) string { return ".png" }

// --- shared helpers ---

func validatePrompt(in *GenerateInput, fields map[string]string) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Prompt == "" {
		fields["prompt"] = "is required"
	} else if len(in.Prompt) > maxPromptLength {
		fields["prompt"] = fmt.Sprintf("must be at most %d characters", maxPromptLength)
	}
}

func validateAspectRatio(in *GenerateInput, fields map[string]string) {
	in.AspectRatio = strings.TrimSpace(in.AspectRatio)
	if in.AspectRatio != "" && !allowedAspectRatios[in.AspectRatio] {
		fields["aspect_ratio"] = "unsupported aspect ratio"
	}
}

func promptWithStyle(in GenerateInput) string {
	if in.Style == "" {
		return in.Prompt
	}
	return in.Prompt + ", " + in.Style + " style"
}

func aspectOrDefault(aspect string) string {
	if aspect == "" {
		return DefaultAspectRatio
	}
	return aspect
}

// nonEmpty guards the invariant that a built parameter bag is never empty;
// an operation deriving zero parameters is a configuration error.
func nonEmpty(params map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return nil, ErrEmptyParameters
	}
	return params, nil
}

func validURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// firstOutputURL reads the head of a JSON list output.
func firstOutputURL(raw json.RawMessage) (string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", fmt.Errorf("decode output list: %w", err)
	}
	if len(list) == 0 || strings.TrimSpace(list[0]) == "" {
		return "", errors.New("output list is empty")
	}
	return strings.TrimSpace(list[0]), nil
}

// directOutputURL reads a single JSON string output.
func directOutputURL(raw json.RawMessage) (string, error) {
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode output: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("output is empty")
	}
	return strings.TrimSpace(out), nil
}
