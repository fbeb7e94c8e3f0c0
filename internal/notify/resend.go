package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// Resend delivers notifications through the Resend REST API.
type Resend struct {
	APIKey   string
	From     string
	To       []string
	Endpoint string // defaults to the Resend API; overridable in tests
	Client   *http.Client
}

func NewResend(apiKey, from string, to []string) *Resend {
	return &Resend{
		APIKey:   apiKey,
		From:     from,
		To:       to,
		Endpoint: resendEndpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

var emailBody = template.Must(template.New("application").Parse(`<div style="font-family: sans-serif; padding: 20px; color: #333;">
  <h2 style="color: #2563eb;">New company application</h2>
  <table style="width: 100%; border-collapse: collapse; margin-top: 20px;">
    <tr><td style="padding: 10px; font-weight: bold;">Company:</td><td style="padding: 10px;">{{.CompanyName}}</td></tr>
    <tr><td style="padding: 10px; font-weight: bold;">Applicant:</td><td style="padding: 10px;">{{.FullName}}</td></tr>
    <tr><td style="padding: 10px; font-weight: bold;">Email:</td><td style="padding: 10px;">{{.Email}}</td></tr>
    <tr><td style="padding: 10px; font-weight: bold;">Phone:</td><td style="padding: 10px;">{{if .Phone}}{{.Phone}}{{else}}-{{end}}</td></tr>
    <tr><td style="padding: 10px; font-weight: bold;">Address:</td><td style="padding: 10px;">{{if .Address}}{{.Address}}{{else}}-{{end}}</td></tr>
    <tr><td style="padding: 10px; font-weight: bold;">Notes:</td><td style="padding: 10px;">{{if .Notes}}{{.Notes}}{{else}}-{{end}}</td></tr>
  </table>
  {{if .PassportURL}}<p><a href="{{.PassportURL}}">View passport</a></p>{{end}}
  {{if .BillURL}}<p><a href="{{.BillURL}}">View proof of address</a></p>{{end}}
</div>`))

func (r *Resend) Send(ctx context.Context, msg ApplicationEmail) error {
	var html bytes.Buffer
	if err := emailBody.Execute(&html, msg); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"from":    r.From,
		"to":      r.To,
		"subject": "New application: " + msg.CompanyName,
		"html":    html.String(),
	})
	if err != nil {
		return err
	}
	endpoint := r.Endpoint
	if endpoint == "" {
		endpoint = resendEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.APIKey)
	req.Header.Set("Content-Type", "application/json")
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
