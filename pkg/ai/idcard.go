// Package ai calls the Gemini API to compose student ID-card images.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harshsingh9817/datacollection/pkg/domain"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash-exp"
)

// ErrComposeFailed indicates the model returned no usable image. The caller
// retries only via a fresh manual invocation; there is no retry loop here.
var ErrComposeFailed = errors.New("id card composition failed")

// IDCardClient composes ID-card images through the Gemini API.
type IDCardClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewIDCardClient constructs a client with the provided API key.
func NewIDCardClient(apiKey, model string) (*IDCardClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	model = strings.TrimSpace(strings.TrimPrefix(model, "models/"))
	if model == "" {
		model = defaultModel
	}
	return &IDCardClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Compose renders an ID card for the given fields and returns the image as a
// data URI. Single attempt; failures surface to the viewer.
func (c *IDCardClient) Compose(ctx context.Context, fields domain.IDCardFields) (string, error) {
	parts := make([]part, 0, 3)
	for _, uri := range []string{fields.LogoDataURI, fields.PhotoDataURI} {
		if blob, ok := parseDataURI(uri); ok {
			parts = append(parts, part{InlineData: &blob})
		}
	}
	parts = append(parts, part{Text: composePrompt(fields)})

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	if err := c.doJSON(ctx, url, reqBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %s", ErrComposeFailed, err)
	}
	for _, candidate := range resp.Candidates {
		for _, p := range candidate.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				mime := p.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				return "data:" + mime + ";base64," + p.InlineData.Data, nil
			}
		}
	}
	return "", fmt.Errorf("%w: response contained no image", ErrComposeFailed)
}

func composePrompt(f domain.IDCardFields) string {
	return fmt.Sprintf(`Generate a student ID card image for %s from %s. Include all details provided.
The ID card should feature the supplied student photo and school logo, or a generic professional placeholder where one was not supplied.

School Name: %s
Student Name: %s
Father's Name: %s
Class: %s
Roll Number: %s
Date of Birth: %s
Address: %s
Contact Number: %s

The ID card should follow common school ID card branding conventions, be professional and easily readable. The background color should be light gray (#F0F8FF), primary color should be Blue (#29ABE2) and accent color should be a contrasting orange (#FF8C00).

Ensure the generated image is a high-quality PNG.`,
		f.StudentName, f.SchoolName,
		f.SchoolName, f.StudentName, f.FatherName, f.ClassName,
		f.RollNumber, f.DateOfBirth, f.Address, f.ContactNumber)
}

func parseDataURI(uri string) (inlineData, bool) {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "data:") {
		return inlineData{}, false
	}
	meta, data, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || data == "" {
		return inlineData{}, false
	}
	mime, _, _ := strings.Cut(meta, ";")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return inlineData{MimeType: mime, Data: data}, true
}

func (c *IDCardClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
