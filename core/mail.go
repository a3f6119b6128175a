package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const emailTemplatesRoot = "assets/templates/email"

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		Locale       string
		TextContent  string
		HTMLContent  string

		// chat notification relayed by the webhook
		ChatNotify  bool
		ChatMessage string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// EmailRenderer renders templated messages from <root>/<locale>/ of an FS.
	EmailRenderer struct {
		fsys            fs.FS
		strict          bool
		appName         string
		frontendBaseURL string

		once      sync.Once
		templates map[string]tmplCache // {locale: tmplCache}
		err       error
	}
)

func NewEmailRenderer(conf *Config, fsys fs.FS) *EmailRenderer {
	return &EmailRenderer{
		fsys:            fsys,
		strict:          conf.Debug || conf.TestMode,
		appName:         conf.AppName,
		frontendBaseURL: conf.FrontendBaseURL,
	}
}

// Render fills in the message's text & HTML contents.
// Templates are parsed once, on first use.
func (r *EmailRenderer) Render(m *EmailMessage) error {
	if m.TemplateName != "" {
		r.once.Do(r.parseTemplates)
		if r.err != nil {
			return r.err
		}
	}
	if err := r.renderText(m); err != nil {
		return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
	}
	if err := r.renderHTML(m); err != nil {
		return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
	}
	return nil
}

func (r *EmailRenderer) contextData(m *EmailMessage) ContextData {
	return ContextData{
		AppName:         r.appName,
		FrontendBaseURL: r.frontendBaseURL,
		Data:            m.TemplateData,
	}
}

// getTemplate looks up the message's locale first, then DefaultLocale.
func (r *EmailRenderer) getTemplate(m *EmailMessage, ext string) (interface{}, bool) {
	for _, locale := range []string{ResolveLocale(m.Locale), DefaultLocale} {
		if cache, ok := r.templates[locale][m.TemplateName]; ok {
			if tmpl, ok := cache[ext]; ok {
				return tmpl, true
			}
		}
	}
	return nil, false
}

func (r *EmailRenderer) renderText(m *EmailMessage) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := r.getTemplate(m, ".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, r.contextData(m)); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (r *EmailRenderer) renderHTML(m *EmailMessage) error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := r.getTemplate(m, ".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, r.contextData(m)); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

func (r *EmailRenderer) parseTemplates() {
	r.templates = make(map[string]tmplCache)
	for _, locale := range SupportedLocales {
		cache, err := r.parseLocale(locale)
		if err != nil {
			r.err = errors.Wrapf(err, "parsing %s email templates", locale)
			return
		}
		r.templates[locale] = cache
	}
}

func (r *EmailRenderer) parseLocale(locale string) (tmplCache, error) {
	cache := make(tmplCache)
	dir := path.Join(emailTemplatesRoot, locale)

	fps, err := fs.Glob(r.fsys, path.Join(dir, "*"))
	if err != nil {
		return nil, err
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = make(tmplCacheEntry)
			cache[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(r.fsys, path.Join(dir, "_base.txt"), fp)
			if err != nil {
				return nil, err
			}
			if r.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(r.fsys, path.Join(dir, "_base.gohtml"), fp)
			if err != nil {
				return nil, err
			}
			if r.strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry[ext] = tmpl
		}
	}
	return cache, nil
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(fpath string, contentType ...string) error {
	f, err := os.Open(fpath)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(fpath), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// Recipients returns the To addresses as plain strings.
func (m *EmailMessage) Recipients() []string {
	res := make([]string, 0, len(m.To))
	for _, addr := range m.To {
		res = append(res, addr.Address)
	}
	return res
}
