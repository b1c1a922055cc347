// Package notify delivers "new posting published" messages to email and webhook destinations
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/jobboard/app/web/persistence"
)

const defaultPostingTemplate = `<!DOCTYPE html>
<html>
	<head>
		<meta name="viewport" content="width=device-width" />
		<meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
		<style type="text/css">
			body {
				font-family: "Arial";
				font-size: 1.0em;
			}
			.bold {
				font-weight: 900;
			}
		</style>
	</head>
	<body>
		<p>New job posted at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Title: <span class="bold">{{.Title}}</span></li>
			<li>Company: <span class="bold">{{.Company}}</span></li>
			<li>Location: {{.Location}}</li>
			<li>Type: {{.JobType}}</li>
			<li>Salary: {{.SalaryRange}}</li>
		</ul>
		{{if .Link}}<p><a href="{{.Link}}">{{.Link}}</a></p>{{end}}
	</body>
</html>
`

// Params configure message rendering and delivery
type Params struct {
	BaseURL  string        // public url of the board, used to build posting links
	Template string        // optional file with html/template for message body
	Timeout  time.Duration // limit for the whole delivery, all destinations included
	Retries  int           // attempts per destination
}

// SendersParams configure destinations
type SendersParams struct {
	SMTP      notify.SMTPParams
	FromEmail string
	ToEmails  []string
	Webhooks  []string
}

// Repeater repeats failed function
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// sender delivers text to a destination, implemented by notify.Email and notify.Webhook
type sender interface {
	Send(ctx context.Context, destination, text string) error
}

// Service sends notifications about new postings
type Service struct {
	Params
	email        sender
	webhook      sender
	fromEmail    string
	toEmails     []string
	webhooks     []string
	repeater     Repeater
	concurrency  int
	postingsTmpl *template.Template
}

// NewService makes notification service, returns nil if no destinations configured
func NewService(params Params, senders SendersParams) *Service {
	if len(senders.ToEmails) == 0 && len(senders.Webhooks) == 0 {
		return nil
	}
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}
	if params.Retries <= 0 {
		params.Retries = 1
	}

	res := &Service{
		Params:      params,
		fromEmail:   senders.FromEmail,
		toEmails:    senders.ToEmails,
		webhooks:    senders.Webhooks,
		concurrency: 4,
		repeater:    repeater.New(&strategy.Backoff{Repeats: params.Retries, Duration: 500 * time.Millisecond, Factor: 2}),
	}
	if len(senders.ToEmails) > 0 {
		res.email = notify.NewEmail(senders.SMTP)
	}
	if len(senders.Webhooks) > 0 {
		res.webhook = notify.NewWebhook(notify.WebhookParams{Timeout: params.Timeout})
	}
	res.postingsTmpl = res.loadTemplate()
	log.Printf("[INFO] notifications enabled, emails: %d, webhooks: %d", len(senders.ToEmails), len(senders.Webhooks))
	return res
}

// PostingCreated sends message about a new posting to all destinations.
// Destinations are delivered in parallel, each one retried independently.
func (s *Service) PostingCreated(ctx context.Context, p persistence.Posting) error {
	body, err := s.MakePostingHTML(p)
	if err != nil {
		return fmt.Errorf("can't make notification body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	type delivery struct {
		dest string
		snd  sender
	}
	deliveries := []delivery{}
	subject := fmt.Sprintf("New job posted: %s at %s", p.Title, p.Company)
	for _, to := range s.toEmails {
		deliveries = append(deliveries, delivery{dest: s.mailto(to, subject), snd: s.email})
	}
	for _, wh := range s.webhooks {
		deliveries = append(deliveries, delivery{dest: wh, snd: s.webhook})
	}

	var mu sync.Mutex
	var errs []error
	gr := syncs.NewSizedGroup(s.concurrency, syncs.Context(ctx))
	for _, d := range deliveries {
		gr.Go(func(ctx context.Context) {
			err := s.repeater.Do(ctx, func() error { return d.snd.Send(ctx, d.dest, body) })
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("failed to notify %s: %w", redact(d.dest), err))
				mu.Unlock()
				return
			}
			log.Printf("[DEBUG] notification about posting %d sent to %s", p.ID, redact(d.dest))
		})
	}
	gr.Wait()

	return errors.Join(errs...)
}

// MakePostingHTML renders message body for a posting
func (s *Service) MakePostingHTML(p persistence.Posting) (string, error) {
	data := struct {
		Title       string
		Company     string
		Location    string
		JobType     string
		SalaryRange string
		Link        string
		TS          time.Time
	}{
		Title:       p.Title,
		Company:     p.Company,
		Location:    p.Location,
		JobType:     p.JobType.String(),
		SalaryRange: p.SalaryRange,
		TS:          p.PostedDate,
	}
	if s.BaseURL != "" && p.ID > 0 {
		data.Link = strings.TrimSuffix(s.BaseURL, "/") + "/job/" + strconv.FormatInt(p.ID, 10)
	}

	buf := bytes.Buffer{}
	if err := s.postingsTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

// loadTemplate parses custom template file if set, falls back to the default one on any error
func (s *Service) loadTemplate() *template.Template {
	def := template.Must(template.New("posting").Parse(defaultPostingTemplate))
	if s.Template == "" {
		return def
	}

	data, err := os.ReadFile(s.Template)
	if err != nil {
		log.Printf("[WARN] can't read notification template %s, using default: %v", s.Template, err)
		return def
	}
	tmpl, err := template.New("posting").Parse(string(data))
	if err != nil {
		log.Printf("[WARN] can't parse notification template %s, using default: %v", s.Template, err)
		return def
	}
	return tmpl
}

func (s *Service) mailto(to, subject string) string {
	q := url.Values{}
	q.Set("from", s.fromEmail)
	q.Set("subject", subject)
	return "mailto:" + to + "?" + q.Encode()
}

// redact strips query and user info from destination for logging
func redact(dest string) string {
	u, err := url.Parse(dest)
	if err != nil {
		return "destination"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
