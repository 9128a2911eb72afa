// Package mail sends notification emails over SMTP.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

//go:embed templates/*.html
var templateFiles embed.FS

var notificationTemplate = template.Must(template.ParseFS(templateFiles, "templates/notification.html"))

// NotificationEmailData feeds templates/notification.html.
type NotificationEmailData struct {
	Name  string
	Title string
	Body  string
	Label string
	Color string
}

// RenderNotification builds the subject and HTML body for an event.
func RenderNotification(event domain.NotificationEvent, recipientName string) (subject, html string, err error) {
	pres := domain.PresentationFor(event.Type)
	data := NotificationEmailData{
		Name:  recipientName,
		Title: event.Title,
		Body:  event.Body,
		Label: pres.Label,
		Color: pres.Color,
	}

	var body bytes.Buffer
	if err := notificationTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render notification email: %w", err)
	}
	return event.Title, body.String(), nil
}

// EmailSender implements port.Mailer with gomail.
type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

func (s *EmailSender) message(to, subject, htmlBody string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	return m
}

// Send delivers one HTML email.
func (s *EmailSender) Send(to, subject, htmlBody string) error {
	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(s.message(to, subject, htmlBody)); err != nil {
		return fmt.Errorf("send email via SMTP: %w", err)
	}
	return nil
}
