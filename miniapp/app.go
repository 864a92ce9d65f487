// Package miniapp serves the companion surface a social-feed client needs
// to embed the storefront: manifest, frame action, webhooks and
// notifications.
package miniapp

import (
	"bytes"
	"html/template"
	"strings"
)

const (
	Version      = "1.0.0"
	FrameVersion = "vNext"
)

// Association proves ownership of the app domain to the host client.
type Association struct {
	Header    string `json:"header" mapstructure:"header"`
	Payload   string `json:"payload" mapstructure:"payload"`
	Signature string `json:"signature" mapstructure:"signature"`
}

func (a *Association) complete() bool {
	return a != nil && a.Header != "" && a.Payload != "" && a.Signature != ""
}

// App describes the storefront to mini-app hosts.
type App struct {
	Name               string
	URL                string
	ImageURL           string
	IconURL            string
	Description        string
	AccountAssociation *Association
}

func (a App) baseURL() string { return strings.TrimRight(a.URL, "/") }

func (a App) imageURL() string {
	if a.ImageURL != "" {
		return a.ImageURL
	}
	return a.baseURL() + "/sharing-image.png"
}

func (a App) iconURL() string {
	if a.IconURL != "" {
		return a.IconURL
	}
	return a.baseURL() + "/icon.png"
}

type ManifestFrame struct {
	Version               string `json:"version"`
	Name                  string `json:"name"`
	IconURL               string `json:"iconUrl"`
	HomeURL               string `json:"homeUrl"`
	ImageURL              string `json:"imageUrl"`
	ButtonTitle           string `json:"buttonTitle"`
	SplashImageURL        string `json:"splashImageUrl"`
	SplashBackgroundColor string `json:"splashBackgroundColor"`
	WebhookURL            string `json:"webhookUrl"`
}

// Manifest is served at /.well-known/farcaster.json.
type Manifest struct {
	AccountAssociation *Association  `json:"accountAssociation,omitempty"`
	Frame              ManifestFrame `json:"frame"`
}

func (a App) Manifest() Manifest {
	m := Manifest{
		Frame: ManifestFrame{
			Version:               "1",
			Name:                  a.Name,
			IconURL:               a.iconURL(),
			HomeURL:               a.baseURL(),
			ImageURL:              a.imageURL(),
			ButtonTitle:           "Open " + a.Name,
			SplashImageURL:        a.iconURL(),
			SplashBackgroundColor: "#ffffff",
			WebhookURL:            a.baseURL() + "/api/farcaster/webhook",
		},
	}
	if a.AccountAssociation.complete() {
		m.AccountAssociation = a.AccountAssociation
	}
	return m
}

type FrameButton struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Target string `json:"target"`
}

type FrameResponse struct {
	Version string        `json:"version"`
	Image   string        `json:"image"`
	Buttons []FrameButton `json:"buttons"`
}

// Frame answers a frame action with a single link back to the app.
func (a App) Frame() FrameResponse {
	return FrameResponse{
		Version: FrameVersion,
		Image:   a.imageURL(),
		Buttons: []FrameButton{{
			Label:  "Visit " + a.Name,
			Action: "link",
			Target: a.URL,
		}},
	}
}

type Features struct {
	Wallet        bool `json:"wallet"`
	Notifications bool `json:"notifications"`
	Sharing       bool `json:"sharing"`
}

type StatusInfo struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	Status          string   `json:"status"`
	Features        Features `json:"features"`
	ManifestPresent bool     `json:"manifestPresent"`
	ManifestValid   bool     `json:"manifestValid"`
}

type Status struct {
	MiniApp StatusInfo `json:"miniapp"`
}

// Status reports the surface as operational. The manifest counts as valid
// only when it carries a full account association.
func (a App) Status(notifications bool) Status {
	return Status{MiniApp: StatusInfo{
		Name:    a.Name,
		Version: Version,
		Status:  "operational",
		Features: Features{
			Wallet:        true,
			Notifications: notifications,
			Sharing:       true,
		},
		ManifestPresent: true,
		ManifestValid:   a.AccountAssociation.complete(),
	}}
}

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}}</title>
<meta name="description" content="{{.Description}}">
<meta property="og:title" content="{{.Name}}">
<meta property="og:description" content="{{.Description}}">
<meta property="og:image" content="{{.Image}}">
<meta property="og:url" content="{{.URL}}/">
<meta property="og:type" content="website">
<meta name="twitter:card" content="summary_large_image">
<meta name="fc:frame" content="vNext">
<meta name="fc:frame:image" content="{{.Image}}">
<meta name="fc:frame:button:1" content="Open {{.Name}}">
<meta name="fc:frame:post_url" content="{{.URL}}/api/farcaster/frame">
</head>
<body>
<main>
<h1>{{.Name}}</h1>
<p>{{.Description}}</p>
</main>
</body>
</html>
`))

// Landing renders the HTML entry page with its share metadata.
func (a App) Landing() ([]byte, error) {
	var buf bytes.Buffer
	err := landingTemplate.Execute(&buf, struct {
		Name, Description, Image, URL string
	}{a.Name, a.Description, a.imageURL(), a.baseURL()})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
