package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"conversation-service/internal/models"
)

// Data is the input to every notification template.
type Data struct {
	RecipientName string
	SenderName    string
	CompanyName   string
	Preview       string
	JobTitle      string
	Link          string
}

type templateSource struct {
	subject string
	text    string
	html    string
}

var templateSources = map[models.NotificationKind]templateSource{
	models.KindNewRecruiterMessage: {
		subject: `{{.SenderName}}{{with .CompanyName}} from {{.}}{{end}} wants to connect`,
		text: `Hi {{.RecipientName}},

{{.SenderName}}{{with .CompanyName}} from {{.}}{{end}} sent you a message{{with .JobTitle}} about {{.}}{{end}}:

"{{.Preview}}"

Accept the request to reply: {{.Link}}
`,
		html: `<p>Hi {{.RecipientName}},</p>
<p><strong>{{.SenderName}}</strong>{{with .CompanyName}} from {{.}}{{end}} sent you a message{{with .JobTitle}} about <em>{{.}}</em>{{end}}:</p>
<blockquote>{{.Preview}}</blockquote>
<p><a href="{{.Link}}">Review the request</a></p>`,
	},
	models.KindRecruiterMessageFollowUp: {
		subject: `New message from {{.SenderName}}`,
		text: `Hi {{.RecipientName}},

{{.SenderName}} replied in your conversation{{with .JobTitle}} about {{.}}{{end}}:

"{{.Preview}}"

Open the conversation: {{.Link}}
`,
		html: `<p>Hi {{.RecipientName}},</p>
<p><strong>{{.SenderName}}</strong> replied in your conversation{{with .JobTitle}} about <em>{{.}}</em>{{end}}:</p>
<blockquote>{{.Preview}}</blockquote>
<p><a href="{{.Link}}">Open the conversation</a></p>`,
	},
	models.KindEndorsementReceived: {
		subject: `{{.SenderName}} endorsed you`,
		text: `Hi {{.RecipientName}},

{{.SenderName}} left you an endorsement. See it on your profile: {{.Link}}
`,
		html: `<p>Hi {{.RecipientName}},</p>
<p><strong>{{.SenderName}}</strong> left you an endorsement.</p>
<p><a href="{{.Link}}">See it on your profile</a></p>`,
	},
	models.KindProfileViewed: {
		subject: `{{with .CompanyName}}{{.}}{{else}}A recruiter{{end}} viewed your profile`,
		text: `Hi {{.RecipientName}},

{{with .SenderName}}{{.}}{{else}}A recruiter{{end}}{{with .CompanyName}} from {{.}}{{end}} viewed your profile.

{{.Link}}
`,
		html: `<p>Hi {{.RecipientName}},</p>
<p>{{with .SenderName}}<strong>{{.}}</strong>{{else}}A recruiter{{end}}{{with .CompanyName}} from {{.}}{{end}} viewed your profile.</p>
<p><a href="{{.Link}}">View your profile</a></p>`,
	},
}

type kindTemplates struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Templates renders notification emails per kind.
type Templates struct {
	byKind map[models.NotificationKind]kindTemplates
}

// Rendered is one rendered notification.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// ParseTemplates compiles the built-in template set.
func ParseTemplates() (*Templates, error) {
	t := &Templates{byKind: make(map[models.NotificationKind]kindTemplates, len(templateSources))}
	for kind, src := range templateSources {
		name := string(kind)
		subject, err := texttemplate.New(name + ".subject").Parse(src.subject)
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", name, err)
		}
		text, err := texttemplate.New(name + ".txt").Parse(src.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", name, err)
		}
		html, err := htmltemplate.New(name + ".html").Parse(src.html)
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", name, err)
		}
		t.byKind[kind] = kindTemplates{subject: subject, text: text, html: html}
	}
	return t, nil
}

// MustParseTemplates panics if the built-in templates do not compile.
func MustParseTemplates() *Templates {
	t, err := ParseTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

// Render produces the subject and bodies for kind.
func (t *Templates) Render(kind models.NotificationKind, data Data) (Rendered, error) {
	tpl, ok := t.byKind[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var subject, text, html bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	return Rendered{Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}
