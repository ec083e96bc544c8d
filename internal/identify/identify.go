// Package identify asks Gemini what plant is on a picture and how to care
// for it.
package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/mgmu/greenhouse/internal/plants"
)

const maxAlternatives = 3

var ErrNoAnswer = errors.New("identification returned no answer")

// Identification is the sanitized answer of the model.
type Identification struct {
	Species      string          `json:"species"`
	CommonName   string          `json:"common_name"`
	Confidence   float64         `json:"confidence"`
	Description  string          `json:"description"`
	Care         Care            `json:"care"`
	Tasks        []SuggestedTask `json:"tasks"`
	Alternatives []Alternative   `json:"alternatives"`
}

type Care struct {
	Light    string `json:"light"`
	Water    string `json:"water"`
	Humidity string `json:"humidity"`
	Soil     string `json:"soil"`
}

type SuggestedTask struct {
	TaskKey       string `json:"task_key"`
	FrequencyDays int    `json:"frequency_days"`
}

type Alternative struct {
	Species    string  `json:"species"`
	CommonName string  `json:"common_name"`
	Confidence float64 `json:"confidence"`
}

var prompt = template.Must(template.New("prompt").Parse(`You are a botanist. Identify the plant on the picture.
Answer with a single JSON object and nothing else, of the form:
{
  "species": "scientific name",
  "common_name": "common name",
  "confidence": number between 0 and 1,
  "description": "two sentences about the plant",
  "care": {"light": "...", "water": "...", "humidity": "...", "soil": "..."},
  "tasks": [{"task_key": "...", "frequency_days": number}],
  "alternatives": [{"species": "...", "common_name": "...", "confidence": number}]
}
Only use these task keys:
{{- range .}}
- {{.Key}} ({{.Label}}, usually every {{.DefaultFrequencyDays}} days)
{{- end}}
If there is no plant on the picture, answer with an empty species and a confidence of 0.
`))

func buildPrompt(templates []plants.TaskTemplate) (string, error) {
	var b bytes.Buffer
	if err := prompt.Execute(&b, templates); err != nil {
		return "", err
	}
	return b.String(), nil
}

type Identifier struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, apiKey, model string) (*Identifier, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Identifier{client: client, model: model}, nil
}

// Identify sends the image to the model. Only the task templates given are
// kept in the suggestions.
func (id *Identifier) Identify(ctx context.Context, image []byte, mimeType string, templates []plants.TaskTemplate) (Identification, error) {
	text, err := buildPrompt(templates)
	if err != nil {
		return Identification{}, err
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(text),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}
	resp, err := id.client.Models.GenerateContent(ctx, id.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Identification{}, fmt.Errorf("gemini: %w", err)
	}
	return Parse(resp.Text(), templates)
}

// Parse decodes and sanitizes a raw answer of the model.
func Parse(raw string, templates []plants.TaskTemplate) (Identification, error) {
	raw = stripFences(raw)
	if raw == "" {
		return Identification{}, ErrNoAnswer
	}
	var out Identification
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Identification{}, fmt.Errorf("%w: %v", ErrNoAnswer, err)
	}
	return Sanitize(out, templates), nil
}

// stripFences removes the markdown code fences models like to wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// confidence brings c into [0, 1]. Values above 1 are read as percentages.
func confidence(c float64) float64 {
	if c > 1 && c <= 100 {
		c /= 100
	}
	switch {
	case c < 0 || math.IsNaN(c):
		return 0
	case c > 1:
		return 1
	}
	return c
}

// Sanitize trims the strings of id, clamps numbers into range and drops the
// tasks whose key is not a known template.
func Sanitize(id Identification, templates []plants.TaskTemplate) Identification {
	known := make(map[string]bool, len(templates))
	for _, t := range templates {
		known[t.Key] = true
	}

	out := Identification{
		Species:     strings.TrimSpace(id.Species),
		CommonName:  strings.TrimSpace(id.CommonName),
		Confidence:  confidence(id.Confidence),
		Description: strings.TrimSpace(id.Description),
		Care: Care{
			Light:    strings.TrimSpace(id.Care.Light),
			Water:    strings.TrimSpace(id.Care.Water),
			Humidity: strings.TrimSpace(id.Care.Humidity),
			Soil:     strings.TrimSpace(id.Care.Soil),
		},
		Tasks:        []SuggestedTask{},
		Alternatives: []Alternative{},
	}

	seen := map[string]bool{}
	for _, t := range id.Tasks {
		key := strings.ToLower(strings.TrimSpace(t.TaskKey))
		if !known[key] || seen[key] {
			continue
		}
		seen[key] = true
		freq := t.FrequencyDays
		if freq < 1 {
			freq = 1
		}
		if freq > plants.MaxFrequency {
			freq = plants.MaxFrequency
		}
		out.Tasks = append(out.Tasks, SuggestedTask{TaskKey: key, FrequencyDays: freq})
	}

	for _, a := range id.Alternatives {
		if len(out.Alternatives) == maxAlternatives {
			break
		}
		species := strings.TrimSpace(a.Species)
		if species == "" || strings.EqualFold(species, out.Species) {
			continue
		}
		out.Alternatives = append(out.Alternatives, Alternative{
			Species:    species,
			CommonName: strings.TrimSpace(a.CommonName),
			Confidence: confidence(a.Confidence),
		})
	}
	return out
}
